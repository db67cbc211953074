package telegram

import (
	"context"

	"bskyrelay/timeline"
)

// Pusher renders a post and sends it, which is all the pipeline needs to
// know about the destination.
type Pusher struct {
	renderer *Renderer
	sender   *Sender
}

func NewPusher(renderer *Renderer, sender *Sender) *Pusher {
	return &Pusher{renderer: renderer, sender: sender}
}

func (p *Pusher) Deliver(ctx context.Context, post *timeline.Post) error {
	return p.sender.Send(ctx, p.renderer.Render(post))
}
