package timeline

import (
	"strings"
	"time"
)

// PostKind classifies a timeline item. A post is exactly one of these.
type PostKind int

const (
	KindOriginal PostKind = iota
	KindReply
	KindQuote
	KindRepost
)

func (k PostKind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindQuote:
		return "quote"
	case KindRepost:
		return "repost"
	default:
		return "original"
	}
}

// Verb is the past-tense form used in attribution lines. A repost's
// attribution describes the subject's own act, so it reads "posted"; the
// reposting actor gets a separate line.
func (k PostKind) Verb() string {
	switch k {
	case KindReply:
		return "replied"
	case KindQuote:
		return "quoted"
	default:
		return "posted"
	}
}

type Author struct {
	DisplayName string
	Handle      string
	Did         string
	AvatarURL   string
	CreatedAt   time.Time

	// Only present when parsed from a detailed profile view
	Description   string
	FollowerCount *int64
	FollowCount   *int64
	PostCount     *int64
}

func (a *Author) URL() string {
	return "https://bsky.app/profile/" + a.Handle
}

// RepostInfo identifies the reposting actor. Present iff Kind == KindRepost.
type RepostInfo struct {
	By Author
	At time.Time
}

// Post is the canonical form of one timeline item. It is built once per
// pipeline run and never mutated afterwards.
type Post struct {
	Cid     string
	Uri     string
	Content string

	// At most one media kind is set.
	Images     []string
	Gif        string
	Video      string
	VideoThumb string
	External   string

	LikeCount   int64
	QuoteCount  int64
	ReplyCount  int64
	RepostCount int64

	CreatedAt time.Time
	Author    Author
	Labels    []string

	Kind   PostKind
	Repost *RepostInfo

	// One level of ancestor context for replies and quotes. Thread parses may
	// chain further levels through Parent.Parent.
	Parent *Post
}

var spoilerLabels = map[string]bool{
	"porn":          true,
	"sexual":        true,
	"graphic-media": true,
	"nudity":        true,
}

// NeedsSpoiler reports whether any retained label marks the post as adult or
// graphic content.
func (p *Post) NeedsSpoiler() bool {
	for _, label := range p.Labels {
		if spoilerLabels[label] {
			return true
		}
	}
	return false
}

// URL returns the public web address of the post.
func (p *Post) URL() string {
	parts := strings.Split(p.Uri, "/")
	return p.Author.URL() + "/post/" + parts[len(parts)-1]
}
