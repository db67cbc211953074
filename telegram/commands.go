package telegram

import (
	"context"
	"errors"
	"fmt"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"bskyrelay/pipeline"
	"bskyrelay/timeline"
)

// ThreadFetcher resolves a post URI into its full thread view, ancestors
// included.
type ThreadFetcher interface {
	FetchThread(ctx context.Context, uri string) (*appbsky.FeedDefs_ThreadViewPost, error)
}

// CommandListener is the operator surface of the bot: a manual trigger for
// the relay pipeline and a thread inspector, restricted to a single owner
// identity. Everything else is ignored.
type CommandListener struct {
	bot      *tgbotapi.BotAPI
	ownerID  int64
	pipeline *pipeline.Pipeline
	threads  ThreadFetcher
	pusher   *Pusher
}

func NewCommandListener(
	bot *tgbotapi.BotAPI,
	ownerID int64,
	p *pipeline.Pipeline,
	threads ThreadFetcher,
	pusher *Pusher,
) *CommandListener {
	return &CommandListener{
		bot:      bot,
		ownerID:  ownerID,
		pipeline: p,
		threads:  threads,
		pusher:   pusher,
	}
}

// Run consumes bot updates until the context is cancelled.
func (l *CommandListener) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := l.bot.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			l.bot.StopReceivingUpdates()
			return
		case update := <-updates:
			l.handle(ctx, update)
		}
	}
}

func (l *CommandListener) handle(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || !message.IsCommand() {
		return
	}
	if message.From == nil || message.From.ID != l.ownerID {
		return
	}

	switch message.Command() {
	case "sync":
		l.runSync(ctx, message)
	case "thread":
		l.relayThread(ctx, message)
	case "ping":
		l.reply(message, "pong")
	}
}

// relayThread delivers one specific post to the destination, with its full
// reply ancestry resolved. Useful to backfill a post the relay missed.
func (l *CommandListener) relayThread(ctx context.Context, message *tgbotapi.Message) {
	uri := message.CommandArguments()
	if uri == "" {
		l.reply(message, "Usage: /thread <at-uri>")
		return
	}

	node, err := l.threads.FetchThread(ctx, uri)
	if err != nil {
		l.reply(message, fmt.Sprintf("Fetching thread failed: %v", err))
		return
	}
	post, err := timeline.ParseThread(node)
	if err != nil {
		l.reply(message, fmt.Sprintf("Parsing thread failed: %v", err))
		return
	}
	if err := l.pusher.Deliver(ctx, post); err != nil {
		l.reply(message, fmt.Sprintf("Sending post failed: %v", err))
		return
	}
	l.reply(message, "Post delivered.")
}

func (l *CommandListener) runSync(ctx context.Context, message *tgbotapi.Message) {
	if l.pipeline.Busy() {
		l.reply(message, "An update check is already running, try again later.")
		return
	}
	l.reply(message, "Checking timeline for updates...")
	stats, err := l.pipeline.RunOnce(ctx)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		l.reply(message, "An update check is already running, try again later.")
	case err != nil:
		log.Errorf("Manual run failed: %v", err)
		l.reply(message, fmt.Sprintf("Update check failed: %v", err))
	default:
		l.reply(message, fmt.Sprintf("Update check done, delivered %d new posts.", stats.Delivered))
	}
}

func (l *CommandListener) reply(message *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(message.Chat.ID, text)
	reply.ReplyToMessageID = message.MessageID
	if _, err := l.bot.Send(reply); err != nil {
		log.Errorf("Error replying to command: %v", err)
	}
}
