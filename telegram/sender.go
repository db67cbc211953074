package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"bskyrelay/monitoring"
)

// RateLimitedError is the destination telling us exactly how long to back
// off before re-sending the same message.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// botAPI is the slice of the bot client the sender uses. *tgbotapi.BotAPI
// satisfies it.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Sender pushes rendered messages into the destination chat. Rate limits are
// honored by waiting the announced interval plus one second and re-sending
// the same payload, with no attempt bound; any other failure is returned to
// the caller untouched.
type Sender struct {
	api     botAPI
	chatID  int64
	topicID int

	sleep func(time.Duration)
}

func NewSender(api *tgbotapi.BotAPI, chatID int64, topicID int) *Sender {
	return &Sender{
		api:     api,
		chatID:  chatID,
		topicID: topicID,
		sleep:   time.Sleep,
	}
}

func (s *Sender) Send(ctx context.Context, message Message) error {
	for {
		err := s.sendOnce(message)
		var rateLimited *RateLimitedError
		if !errors.As(err, &rateLimited) {
			return err
		}

		wait := rateLimited.RetryAfter + time.Second
		log.Warnf("Hit flood wait, retrying in %s", wait)
		monitoring.FloodWaitsTotal.Inc()
		s.sleep(wait)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// sendOnce picks the Telegram method from the media layout: animation for
// gifs, plain text without media, single photo with caption, and a media
// group with the caption on the first item otherwise.
func (s *Sender) sendOnce(message Message) error {
	var err error
	switch {
	case message.Gif != "":
		animation := tgbotapi.NewAnimation(s.chatID, tgbotapi.FileURL(message.Gif))
		animation.Caption = message.Text
		animation.ParseMode = tgbotapi.ModeHTML
		animation.ReplyToMessageID = s.topicID
		animation.ReplyMarkup = keyboard(message.Buttons)
		_, err = s.api.Send(animation)

	case len(message.Images) == 0:
		msg := tgbotapi.NewMessage(s.chatID, message.Text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		msg.ReplyToMessageID = s.topicID
		msg.ReplyMarkup = keyboard(message.Buttons)
		_, err = s.api.Send(msg)

	case len(message.Images) == 1:
		photo := tgbotapi.NewPhoto(s.chatID, tgbotapi.FileURL(message.Images[0]))
		photo.Caption = message.Text
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyToMessageID = s.topicID
		photo.ReplyMarkup = keyboard(message.Buttons)
		_, err = s.api.Send(photo)

	default:
		files := make([]interface{}, 0, len(message.Images))
		for i, image := range message.Images {
			photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(image))
			if i == 0 {
				photo.Caption = message.Text
				photo.ParseMode = tgbotapi.ModeHTML
			}
			files = append(files, photo)
		}
		group := tgbotapi.NewMediaGroup(s.chatID, files)
		group.ReplyToMessageID = s.topicID
		_, err = s.api.SendMediaGroup(group)
	}
	return classify(err)
}

// classify maps Telegram API errors onto the retry contract.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.RetryAfter > 0) {
		return &RateLimitedError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	return err
}

func keyboard(buttons []Button) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL(button.Label, button.URL))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
