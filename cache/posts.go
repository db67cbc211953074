package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"bskyrelay/timeline"
)

const postKeyPrefix = "post:"

// PostsRetention bounds how long delivered posts are remembered. Entries
// beyond the window may be re-delivered; the fetch cadence and timeline depth
// keep that rare.
const PostsRetention = 7 * 24 * time.Hour

// PostsCache remembers which posts were already delivered. It is a recency
// filter, not a permanent ledger.
type PostsCache struct {
	redisClient *redis.Client
	retention   time.Duration
}

func NewPostsCache(options *redis.Options) *PostsCache {
	return &PostsCache{
		redisClient: redis.NewClient(options),
		retention:   PostsRetention,
	}
}

// Key derives the dedup identity of a post. A repost item's view already is
// the reposted subject's own view, so keying on Cid collapses a repost and
// its subject to one delivery.
func (c *PostsCache) Key(post *timeline.Post) string {
	return postKeyPrefix + post.Cid
}

func (c *PostsCache) Seen(ctx context.Context, post *timeline.Post) bool {
	count, err := c.redisClient.Exists(ctx, c.Key(post)).Result()
	if err != nil {
		log.Errorf("Error checking posts cache: %v", err)
		return false
	}
	return count > 0
}

func (c *PostsCache) MarkSeen(ctx context.Context, post *timeline.Post) {
	err := c.redisClient.Set(ctx, c.Key(post), "1", c.retention).Err()
	if err != nil {
		log.Errorf("Error writing posts cache: %v", err)
	}
}
