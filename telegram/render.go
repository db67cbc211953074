package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"bskyrelay/timeline"
)

const headerLine = "<b>Bsky Timeline Update</b>"
const timeLayout = "2006-01-02 15:04:05"

// Button is one URL button of the action row under a delivered message.
type Button struct {
	Label string
	URL   string
}

// Message is a destination-ready rendering of a post: HTML text, media
// references and the action row. The sender decides the concrete Telegram
// method from the media fields.
type Message struct {
	Text    string
	Images  []string
	Gif     string
	Buttons []Button
}

// Renderer formats posts deterministically. Timestamps are rendered in the
// configured timezone.
type Renderer struct {
	location *time.Location
}

func NewRenderer(location *time.Location) *Renderer {
	return &Renderer{location: location}
}

func (r *Renderer) Render(post *timeline.Post) Message {
	var b strings.Builder
	b.WriteString(headerLine)
	b.WriteString("\n\n")
	if post.NeedsSpoiler() {
		b.WriteString("⚠ NSFW\n\n")
	}

	if post.Parent != nil {
		b.WriteString("<blockquote>")
		b.WriteString(post.Parent.Content)
		b.WriteString("</blockquote>\n\n")
	}
	b.WriteString(post.Content)
	b.WriteString("\n\n")

	if post.Parent != nil {
		b.WriteString(r.attribution(post.Parent))
		b.WriteString("\n")
	}
	b.WriteString(r.attribution(post))
	if post.Repost != nil {
		b.WriteString(fmt.Sprintf(
			"\nReposted by %s at %s",
			authorLink(&post.Repost.By),
			post.Repost.At.In(r.location).Format(timeLayout),
		))
	}

	b.WriteString(fmt.Sprintf(
		"\n\n%d likes | %d quotes | %d replies | %d reposts",
		post.LikeCount, post.QuoteCount, post.ReplyCount, post.RepostCount,
	))

	return Message{
		Text:    b.String(),
		Images:  post.Images,
		Gif:     post.Gif,
		Buttons: buttons(post),
	}
}

func (r *Renderer) attribution(post *timeline.Post) string {
	return fmt.Sprintf(
		"%s %s at %s",
		authorLink(&post.Author),
		post.Kind.Verb(),
		post.CreatedAt.In(r.location).Format(timeLayout),
	)
}

func authorLink(author *timeline.Author) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, author.URL(), html.EscapeString(author.DisplayName))
}

// buttons builds the action row: Source, Author, and for replies and quotes
// an extra button to the parent post between them.
func buttons(post *timeline.Post) []Button {
	row := []Button{{Label: "Source", URL: post.URL()}}
	if post.Parent != nil {
		row = append(row, Button{Label: "Reposted Source", URL: post.Parent.URL()})
	}
	return append(row, Button{Label: "Author", URL: post.Author.URL()})
}
