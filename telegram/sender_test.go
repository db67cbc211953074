package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeAPI struct {
	sent   []tgbotapi.Chattable
	groups []tgbotapi.MediaGroupConfig
	errs   []error
}

func (f *fakeAPI) nextErr() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.nextErr()
}

func (f *fakeAPI) SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	f.groups = append(f.groups, config)
	return nil, f.nextErr()
}

func newTestSender(api *fakeAPI, slept *[]time.Duration) *Sender {
	return &Sender{
		api:     api,
		chatID:  42,
		topicID: 7,
		sleep: func(d time.Duration) {
			*slept = append(*slept, d)
		},
	}
}

func floodErr(retryAfter int) error {
	return &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: retryAfter},
	}
}

func TestSendRetriesOnFloodWait(t *testing.T) {
	api := &fakeAPI{errs: []error{floodErr(30), nil}}
	var slept []time.Duration
	sender := newTestSender(api, &slept)

	err := sender.Send(context.Background(), Message{Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.sent) != 2 {
		t.Errorf("got %d sends, want the same message sent twice", len(api.sent))
	}
	if len(slept) != 1 || slept[0] != 31*time.Second {
		t.Errorf("got sleeps %v, want one wait of 31s", slept)
	}
}

func TestSendFatalNotRetried(t *testing.T) {
	fatal := &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}
	api := &fakeAPI{errs: []error{fatal}}
	var slept []time.Duration
	sender := newTestSender(api, &slept)

	err := sender.Send(context.Background(), Message{Text: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		t.Error("fatal error must not classify as rate limited")
	}
	if len(api.sent) != 1 {
		t.Errorf("got %d sends, want exactly one attempt", len(api.sent))
	}
	if len(slept) != 0 {
		t.Errorf("got sleeps %v, want none", slept)
	}
}

func TestSendLayoutSelection(t *testing.T) {
	api := &fakeAPI{}
	var slept []time.Duration
	sender := newTestSender(api, &slept)
	ctx := context.Background()

	if err := sender.Send(ctx, Message{Text: "plain"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.sent[0].(tgbotapi.MessageConfig); !ok {
		t.Errorf("no media must send a text message, got %T", api.sent[0])
	}

	if err := sender.Send(ctx, Message{Text: "gif", Gif: "https://x/clip.gif"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.sent[1].(tgbotapi.AnimationConfig); !ok {
		t.Errorf("gif must send an animation, got %T", api.sent[1])
	}

	if err := sender.Send(ctx, Message{Text: "pic", Images: []string{"https://x/1"}}); err != nil {
		t.Fatal(err)
	}
	photo, ok := api.sent[2].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("single image must send a photo, got %T", api.sent[2])
	}
	if photo.Caption != "pic" {
		t.Errorf("got caption %q, want %q", photo.Caption, "pic")
	}

	if err := sender.Send(ctx, Message{Text: "album", Images: []string{"https://x/1", "https://x/2"}}); err != nil {
		t.Fatal(err)
	}
	if len(api.groups) != 1 {
		t.Fatalf("multiple images must send a media group, got %d", len(api.groups))
	}
	group := api.groups[0]
	if len(group.Media) != 2 {
		t.Fatalf("got %d group items, want 2", len(group.Media))
	}
	first, ok := group.Media[0].(tgbotapi.InputMediaPhoto)
	if !ok {
		t.Fatalf("got %T, want InputMediaPhoto", group.Media[0])
	}
	if first.Caption != "album" {
		t.Errorf("caption must sit on the first item, got %q", first.Caption)
	}
	second := group.Media[1].(tgbotapi.InputMediaPhoto)
	if second.Caption != "" {
		t.Errorf("later items must have no caption, got %q", second.Caption)
	}
}
