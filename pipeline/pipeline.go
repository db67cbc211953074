package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	log "github.com/sirupsen/logrus"

	"bskyrelay/cache"
	"bskyrelay/monitoring"
	"bskyrelay/timeline"
)

// ErrBusy is returned when a run is requested while another is in flight.
// The caller is expected to give up, not queue.
var ErrBusy = errors.New("a timeline run is already in flight")

// Source provides raw timeline items, newest first.
type Source interface {
	FetchTimeline(ctx context.Context) ([]*appbsky.FeedDefs_FeedViewPost, error)
}

// DedupCache decides whether a post was already delivered, keyed by content
// identity.
type DedupCache interface {
	Key(post *timeline.Post) string
	Seen(ctx context.Context, post *timeline.Post) bool
	MarkSeen(ctx context.Context, post *timeline.Post)
}

// Deliverer renders and pushes one post to the destination.
type Deliverer interface {
	Deliver(ctx context.Context, post *timeline.Post) error
}

// Stats summarizes one run.
type Stats struct {
	Fetched    int
	Parsed     int
	Duplicates int
	Delivered  int
	Failed     int
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"fetched=%d parsed=%d duplicates=%d delivered=%d failed=%d",
		s.Fetched, s.Parsed, s.Duplicates, s.Delivered, s.Failed,
	)
}

// Pipeline relays new timeline posts to the destination exactly once each.
// At most one run is in flight at a time; concurrent triggers fail fast with
// ErrBusy.
type Pipeline struct {
	source    Source
	dedup     DedupCache
	deliverer Deliverer

	mu sync.Mutex
}

func New(source Source, dedup DedupCache, deliverer Deliverer) *Pipeline {
	return &Pipeline{
		source:    source,
		dedup:     dedup,
		deliverer: deliverer,
	}
}

// RunOnce executes one fetch-normalize-filter-deliver cycle. A fetch failure
// aborts the run with nothing delivered. Parse and delivery failures are
// per-item: they are logged and the run continues. Posts are delivered in
// chronological order and marked seen only after a successful send.
// Busy reports whether a run currently holds the single-flight lock.
func (p *Pipeline) Busy() bool {
	if p.mu.TryLock() {
		p.mu.Unlock()
		return false
	}
	return true
}

func (p *Pipeline) RunOnce(ctx context.Context) (Stats, error) {
	if !p.mu.TryLock() {
		return Stats{}, ErrBusy
	}
	defer p.mu.Unlock()

	started := time.Now()
	var stats Stats

	items, err := p.source.FetchTimeline(ctx)
	if err != nil {
		monitoring.RunsTotal.WithLabelValues("fetch_error").Inc()
		return stats, err
	}
	stats.Fetched = len(items)

	posts := p.normalize(items, &stats)
	posts = p.filter(ctx, posts, &stats)
	reverse(posts)

	for _, post := range posts {
		if err := p.deliverer.Deliver(ctx, post); err != nil {
			// Left unmarked on purpose: the next run reconsiders it.
			log.Errorf("Error sending post %s: %v", post.Uri, err)
			monitoring.DeliveryFailuresTotal.Inc()
			stats.Failed++
			continue
		}
		p.dedup.MarkSeen(ctx, post)
		monitoring.PostsDeliveredTotal.Inc()
		stats.Delivered++
	}

	monitoring.RunsTotal.WithLabelValues("ok").Inc()
	monitoring.RunDuration.Observe(time.Since(started).Seconds())
	return stats, nil
}

func (p *Pipeline) normalize(items []*appbsky.FeedDefs_FeedViewPost, stats *Stats) []*timeline.Post {
	posts := make([]*timeline.Post, 0, len(items))
	for _, item := range items {
		post, err := timeline.ParseFeedItem(item)
		if err != nil {
			log.Errorf("Error parsing timeline item: %v", err)
			monitoring.ParseErrorsTotal.Inc()
			continue
		}
		posts = append(posts, post)
	}
	stats.Parsed = len(posts)
	return posts
}

// filter drops posts already delivered in a previous run as well as
// duplicates appearing twice within this fetch.
func (p *Pipeline) filter(ctx context.Context, posts []*timeline.Post, stats *Stats) []*timeline.Post {
	batch := cache.NewBatch()
	fresh := make([]*timeline.Post, 0, len(posts))
	for _, post := range posts {
		if batch.Observe(p.dedup.Key(post)) || p.dedup.Seen(ctx, post) {
			monitoring.DuplicatesSkippedTotal.Inc()
			stats.Duplicates++
			continue
		}
		fresh = append(fresh, post)
	}
	return fresh
}

// reverse flips the newest-first fetch order into delivery order.
func reverse(posts []*timeline.Post) {
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
}
