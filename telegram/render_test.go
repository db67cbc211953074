package telegram

import (
	"strings"
	"testing"
	"time"

	"bskyrelay/timeline"
)

var renderTime = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func author(handle string) timeline.Author {
	return timeline.Author{
		DisplayName: "User " + handle,
		Handle:      handle,
		Did:         "did:plc:" + handle,
	}
}

func textPost() *timeline.Post {
	return &timeline.Post{
		Cid:         "cid1",
		Uri:         "at://did:plc:author/app.bsky.feed.post/abc",
		Content:     "hello world",
		CreatedAt:   renderTime,
		Author:      author("author.bsky.social"),
		Kind:        timeline.KindOriginal,
		LikeCount:   3,
		QuoteCount:  1,
		ReplyCount:  2,
		RepostCount: 4,
	}
}

func TestRenderTextPost(t *testing.T) {
	message := NewRenderer(time.UTC).Render(textPost())

	if !strings.HasPrefix(message.Text, "<b>Bsky Timeline Update</b>\n\n") {
		t.Errorf("missing header: %q", message.Text)
	}
	if !strings.Contains(message.Text, "hello world") {
		t.Errorf("missing content: %q", message.Text)
	}
	if !strings.Contains(message.Text, "posted at 2024-10-01 12:00:00") {
		t.Errorf("missing attribution: %q", message.Text)
	}
	if !strings.Contains(message.Text, "3 likes | 1 quotes | 2 replies | 4 reposts") {
		t.Errorf("missing footer: %q", message.Text)
	}
	if len(message.Buttons) != 2 || message.Buttons[0].Label != "Source" || message.Buttons[1].Label != "Author" {
		t.Errorf("got buttons %v, want Source and Author", message.Buttons)
	}
	if message.Gif != "" || len(message.Images) != 0 {
		t.Error("text post must carry no media")
	}
}

func TestRenderQuote(t *testing.T) {
	parent := textPost()
	parent.Uri = "at://did:plc:other/app.bsky.feed.post/xyz"
	parent.Content = "the quoted one"
	parent.Author = author("other.bsky.social")

	post := textPost()
	post.Kind = timeline.KindQuote
	post.Parent = parent

	message := NewRenderer(time.UTC).Render(post)

	quoteIdx := strings.Index(message.Text, "<blockquote>the quoted one</blockquote>")
	contentIdx := strings.Index(message.Text, "hello world")
	if quoteIdx == -1 || contentIdx == -1 || quoteIdx > contentIdx {
		t.Errorf("parent excerpt must precede content: %q", message.Text)
	}

	parentAttr := strings.Index(message.Text, "User other.bsky.social</a> posted at")
	postAttr := strings.Index(message.Text, "User author.bsky.social</a> quoted at")
	if parentAttr == -1 || postAttr == -1 || parentAttr > postAttr {
		t.Errorf("parent attribution must come first: %q", message.Text)
	}

	labels := make([]string, 0, len(message.Buttons))
	for _, button := range message.Buttons {
		labels = append(labels, button.Label)
	}
	if strings.Join(labels, ",") != "Source,Reposted Source,Author" {
		t.Errorf("got buttons %v, want parent button between Source and Author", labels)
	}
	if message.Buttons[1].URL != parent.URL() {
		t.Errorf("got parent button url %q, want %q", message.Buttons[1].URL, parent.URL())
	}
}

func TestRenderRepost(t *testing.T) {
	post := textPost()
	post.Kind = timeline.KindRepost
	post.Repost = &timeline.RepostInfo{
		By: author("booster.bsky.social"),
		At: renderTime.Add(time.Hour),
	}

	message := NewRenderer(time.UTC).Render(post)

	if !strings.Contains(message.Text, "Reposted by") ||
		!strings.Contains(message.Text, "User booster.bsky.social") ||
		!strings.Contains(message.Text, "13:00:00") {
		t.Errorf("missing repost attribution: %q", message.Text)
	}
	// The subject's line describes their own act; only the extra line names
	// the reposting actor.
	if !strings.Contains(message.Text, "User author.bsky.social</a> posted at") {
		t.Errorf("subject attribution must read posted: %q", message.Text)
	}
	if strings.Contains(message.Text, "reposted at") {
		t.Errorf("subject attribution must not read reposted: %q", message.Text)
	}
	if len(message.Buttons) != 2 {
		t.Errorf("repost without parent must keep two buttons, got %v", message.Buttons)
	}
}

func TestRenderSpoilerWarning(t *testing.T) {
	post := textPost()
	post.Labels = []string{"porn"}

	message := NewRenderer(time.UTC).Render(post)
	if !strings.Contains(message.Text, "NSFW") {
		t.Errorf("missing NSFW warning: %q", message.Text)
	}
}

func TestRenderTimezone(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	message := NewRenderer(shanghai).Render(textPost())
	if !strings.Contains(message.Text, "2024-10-01 20:00:00") {
		t.Errorf("timestamps must render in the configured timezone: %q", message.Text)
	}
}

func TestRenderMediaPassthrough(t *testing.T) {
	post := textPost()
	post.Images = []string{"https://cdn/img1", "https://cdn/img2"}
	message := NewRenderer(time.UTC).Render(post)
	if len(message.Images) != 2 {
		t.Errorf("got %d images, want 2", len(message.Images))
	}

	post = textPost()
	post.Gif = "https://media.tenor.com/clip.gif"
	message = NewRenderer(time.UTC).Render(post)
	if message.Gif != post.Gif {
		t.Errorf("got gif %q, want %q", message.Gif, post.Gif)
	}
}
