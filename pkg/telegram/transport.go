// Package telegram runs the Astra Personal chat bot: inbound commands, account
// linking and the outbound transport used by the daily push.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// ErrNoToken is returned when the bot token is missing
var ErrNoToken = errors.New("telegram token is required")

const (
	sendTimeout     = 10 * time.Second
	identityTimeout = 5 * time.Second
)

// legacy Markdown: the message templates leave '.', '!' and '-' unescaped,
// which MarkdownV2 rejects
const parseModeMarkdown tgmodels.ParseMode = "Markdown"


// Transport is the subset of the Bot API the service talks to
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendAudio(ctx context.Context, chatID int64, audioURL, caption string) error
	BotUsername(ctx context.Context) (string, error)
	SetWebhook(ctx context.Context, url string) error
}

var _ Transport = (*BotTransport)(nil)

// BotTransport implements Transport on top of go-telegram/bot
type BotTransport struct {
	bot *tgbot.Bot
}

// NewBotTransport creates the transport. Updates arrive through the webhook, so
// the bot is never started in polling mode.
func NewBotTransport(token string, opts ...tgbot.Option) (*BotTransport, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	opts = append([]tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithHTTPClient(sendTimeout, &http.Client{Timeout: sendTimeout}),
	}, opts...)

	b, err := tgbot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &BotTransport{bot: b}, nil
}

// SendMessage sends a Markdown text message
func (t *BotTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := t.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// SendAudio sends an audio file by public URL
func (t *BotTransport) SendAudio(ctx context.Context, chatID int64, audioURL, caption string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := t.bot.SendAudio(ctx, &tgbot.SendAudioParams{
		ChatID:    chatID,
		Audio:     &tgmodels.InputFileString{Data: audioURL},
		Caption:   caption,
		ParseMode: parseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("sendAudio: %w", err)
	}
	return nil
}

// BotUsername asks the Bot API for the bot's own username
func (t *BotTransport) BotUsername(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()

	me, err := t.bot.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("getMe: %w", err)
	}
	return me.Username, nil
}

// SetWebhook registers url for message updates only
func (t *BotTransport) SetWebhook(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	ok, err := t.bot.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:            url,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	if !ok {
		return errors.New("setWebhook: rejected")
	}
	return nil
}
