package timeline

import (
	"fmt"
	"strings"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
)

// Template of the video CDN playlist endpoint, keyed by author DID and the
// video blob's CID.
const videoPlaylistURL = "https://video.bsky.app/watch/%s/%s/playlist.m3u8"

// Labels are only trusted when applied by the post's own author or by one of
// these labeler services. Everything else is dropped at parse time.
var trustedLabelers = map[string]bool{
	"did:plc:ar7c4by46qjdydhdevvrndac": true, // Bluesky moderation service
}

// ParseError reports a raw feed item whose required fields were missing or
// malformed. The pipeline skips the item and continues.
type ParseError struct {
	Uri    string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Uri == "" {
		return fmt.Sprintf("parse feed item: %s", e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Uri, e.Reason)
}

func parseError(uri string, format string, args ...any) *ParseError {
	return &ParseError{Uri: uri, Reason: fmt.Sprintf(format, args...)}
}

// ParseFeedItem normalizes one timeline item into a Post. Reply parents are
// expanded exactly one level; quoted records are normalized recursively into
// Parent. It fails only when required fields (post view, record, author) are
// absent; missing media or labels are not errors.
func ParseFeedItem(item *appbsky.FeedDefs_FeedViewPost) (*Post, error) {
	if item == nil || item.Post == nil {
		return nil, parseError("", "missing post view")
	}

	post, err := parsePostView(item.Post)
	if err != nil {
		return nil, err
	}

	switch {
	case item.Reply != nil:
		if item.Reply.Parent == nil || item.Reply.Parent.FeedDefs_PostView == nil {
			return nil, parseError(item.Post.Uri, "reply parent unavailable")
		}
		parent, err := parsePostView(item.Reply.Parent.FeedDefs_PostView)
		if err != nil {
			return nil, err
		}
		post.Kind = KindReply
		post.Parent = parent

	case item.Reason != nil && item.Reason.FeedDefs_ReasonRepost != nil:
		reason := item.Reason.FeedDefs_ReasonRepost
		if reason.By == nil {
			return nil, parseError(item.Post.Uri, "repost reason without actor")
		}
		post.Kind = KindRepost
		post.Repost = &RepostInfo{
			By: parseAuthor(reason.By),
			At: parseTime(reason.IndexedAt),
		}
		// Repost and Parent are mutually exclusive; a quote embed picked up
		// from the subject's own view is dropped here.
		post.Parent = nil

	case post.Parent != nil:
		// Quote detected while parsing the embed.
		post.Kind = KindQuote

	default:
		post.Kind = KindOriginal
	}
	return post, nil
}

// ParseThread normalizes a full thread view. Unlike timeline items, parents
// are followed recursively, so a reply chain C -> B -> A comes out with
// Parent links all the way up.
func ParseThread(node *appbsky.FeedDefs_ThreadViewPost) (*Post, error) {
	if node == nil || node.Post == nil {
		return nil, parseError("", "missing thread post view")
	}

	post, err := parsePostView(node.Post)
	if err != nil {
		return nil, err
	}

	switch {
	case node.Parent != nil:
		if node.Parent.FeedDefs_ThreadViewPost == nil {
			return nil, parseError(node.Post.Uri, "thread parent unavailable")
		}
		parent, err := ParseThread(node.Parent.FeedDefs_ThreadViewPost)
		if err != nil {
			return nil, err
		}
		post.Kind = KindReply
		post.Parent = parent

	case post.Parent != nil:
		post.Kind = KindQuote

	default:
		post.Kind = KindOriginal
	}
	return post, nil
}

// parsePostView converts the shared part of a post view: record text, embed,
// author, counters and labels. Quoted records land in Parent; the caller
// decides the final Kind.
func parsePostView(view *appbsky.FeedDefs_PostView) (*Post, error) {
	if view == nil {
		return nil, parseError("", "missing post view")
	}
	if view.Author == nil {
		return nil, parseError(view.Uri, "missing author")
	}
	if view.Record == nil || view.Record.Val == nil {
		return nil, parseError(view.Uri, "missing record")
	}
	record, ok := view.Record.Val.(*appbsky.FeedPost)
	if !ok {
		return nil, parseError(view.Uri, "record is not a feed post")
	}

	post := &Post{
		Cid:         view.Cid,
		Uri:         view.Uri,
		Content:     renderFacets(record.Text, record.Facets),
		LikeCount:   derefCount(view.LikeCount),
		QuoteCount:  derefCount(view.QuoteCount),
		ReplyCount:  derefCount(view.ReplyCount),
		RepostCount: derefCount(view.RepostCount),
		CreatedAt:   parseTime(record.CreatedAt),
		Author:      parseAuthor(view.Author),
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = parseTime(view.IndexedAt)
	}
	post.Labels = filterLabels(view, post.Author.Did)

	if view.Embed != nil {
		if err := applyEmbed(post, view.Embed); err != nil {
			return nil, err
		}
	}
	return post, nil
}

// applyEmbed dispatches on the post's one-of embed payload.
func applyEmbed(post *Post, embed *appbsky.FeedDefs_PostView_Embed) error {
	switch {
	case embed.EmbedImages_View != nil:
		applyImages(post, embed.EmbedImages_View)

	case embed.EmbedVideo_View != nil:
		applyVideo(post, embed.EmbedVideo_View)

	case embed.EmbedExternal_View != nil:
		applyExternal(post, embed.EmbedExternal_View)

	case embed.EmbedRecord_View != nil:
		return applyQuotedRecord(post, embed.EmbedRecord_View)

	case embed.EmbedRecordWithMedia_View != nil:
		media := embed.EmbedRecordWithMedia_View.Media
		if media != nil {
			switch {
			case media.EmbedImages_View != nil:
				applyImages(post, media.EmbedImages_View)
			case media.EmbedVideo_View != nil:
				applyVideo(post, media.EmbedVideo_View)
			case media.EmbedExternal_View != nil:
				applyExternal(post, media.EmbedExternal_View)
			}
		}
		if record := embed.EmbedRecordWithMedia_View.Record; record != nil {
			return applyQuotedRecord(post, record)
		}
	}
	return nil
}

func applyImages(post *Post, view *appbsky.EmbedImages_View) {
	for _, image := range view.Images {
		if image != nil {
			post.Images = append(post.Images, image.Fullsize)
		}
	}
}

func applyVideo(post *Post, view *appbsky.EmbedVideo_View) {
	post.Video = fmt.Sprintf(videoPlaylistURL, post.Author.Did, view.Cid)
	if view.Thumbnail != nil {
		post.VideoThumb = *view.Thumbnail
	}
}

// External links whose URL mentions .gif are treated as animations, which is
// how Tenor links arrive.
func applyExternal(post *Post, view *appbsky.EmbedExternal_View) {
	if view.External == nil {
		return
	}
	uri := view.External.Uri
	if strings.Contains(uri, ".gif") {
		post.Gif = uri
	} else {
		post.External = uri
	}
}

// applyQuotedRecord normalizes a quoted record into Parent when the embed
// carries a full record view. Other referenced records (feeds, lists,
// blocked or deleted posts) are ignored rather than failing the item.
func applyQuotedRecord(post *Post, view *appbsky.EmbedRecord_View) error {
	if view.Record == nil || view.Record.EmbedRecord_ViewRecord == nil {
		return nil
	}
	parent, err := parseViewRecord(view.Record.EmbedRecord_ViewRecord)
	if err != nil {
		return err
	}
	post.Parent = parent
	return nil
}

// parseViewRecord handles the embedded flavor of a post view used inside
// quote embeds, which carries its value and embeds in a different shape.
func parseViewRecord(rec *appbsky.EmbedRecord_ViewRecord) (*Post, error) {
	if rec.Author == nil {
		return nil, parseError(rec.Uri, "missing author")
	}
	if rec.Value == nil || rec.Value.Val == nil {
		return nil, parseError(rec.Uri, "missing record")
	}
	record, ok := rec.Value.Val.(*appbsky.FeedPost)
	if !ok {
		return nil, parseError(rec.Uri, "record is not a feed post")
	}

	post := &Post{
		Cid:         rec.Cid,
		Uri:         rec.Uri,
		Content:     renderFacets(record.Text, record.Facets),
		LikeCount:   derefCount(rec.LikeCount),
		QuoteCount:  derefCount(rec.QuoteCount),
		ReplyCount:  derefCount(rec.ReplyCount),
		RepostCount: derefCount(rec.RepostCount),
		CreatedAt:   parseTime(record.CreatedAt),
		Author:      parseAuthor(rec.Author),
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = parseTime(rec.IndexedAt)
	}
	for _, label := range rec.Labels {
		if label != nil && (trustedLabelers[label.Src] || label.Src == post.Author.Did) {
			post.Labels = append(post.Labels, label.Val)
		}
	}

	if len(rec.Embeds) > 0 && rec.Embeds[0] != nil {
		embed := rec.Embeds[0]
		switch {
		case embed.EmbedImages_View != nil:
			applyImages(post, embed.EmbedImages_View)
		case embed.EmbedVideo_View != nil:
			applyVideo(post, embed.EmbedVideo_View)
		case embed.EmbedExternal_View != nil:
			applyExternal(post, embed.EmbedExternal_View)
		}
	}
	return post, nil
}

func filterLabels(view *appbsky.FeedDefs_PostView, authorDid string) []string {
	var labels []string
	for _, label := range view.Labels {
		if label == nil {
			continue
		}
		if trustedLabelers[label.Src] || label.Src == authorDid {
			labels = append(labels, label.Val)
		}
	}
	return labels
}

func parseAuthor(profile *appbsky.ActorDefs_ProfileViewBasic) Author {
	author := Author{
		Did:    profile.Did,
		Handle: profile.Handle,
	}
	if profile.DisplayName != nil {
		author.DisplayName = *profile.DisplayName
	}
	if author.DisplayName == "" {
		author.DisplayName = profile.Handle
	}
	if profile.Avatar != nil {
		author.AvatarURL = *profile.Avatar
	}
	if profile.CreatedAt != nil {
		author.CreatedAt = parseTime(*profile.CreatedAt)
	}
	return author
}

// ParseProfile converts a detailed profile view, which additionally carries
// the description and counters missing from the basic view.
func ParseProfile(profile *appbsky.ActorDefs_ProfileViewDetailed) Author {
	author := Author{
		Did:    profile.Did,
		Handle: profile.Handle,
	}
	if profile.DisplayName != nil {
		author.DisplayName = *profile.DisplayName
	}
	if author.DisplayName == "" {
		author.DisplayName = profile.Handle
	}
	if profile.Avatar != nil {
		author.AvatarURL = *profile.Avatar
	}
	if profile.CreatedAt != nil {
		author.CreatedAt = parseTime(*profile.CreatedAt)
	}
	if profile.Description != nil {
		author.Description = *profile.Description
	}
	author.FollowerCount = profile.FollowersCount
	author.FollowCount = profile.FollowsCount
	author.PostCount = profile.PostsCount
	return author
}

func derefCount(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
