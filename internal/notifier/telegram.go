package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
)

// errTelegramSettings is returned when the bot token or chat is missing.
var errTelegramSettings = errors.New("telegram bot token and chat id must be provided")

// Telegram delivers messages to one chat through a bot.
type Telegram struct {
	// bot is the API client.
	bot *bot.Bot
	// chatID is the destination chat.
	chatID int64
}

// NewTelegram creates the transport. Extra bot options are passed through,
// which tests use to point the client at a fake server.
func NewTelegram(token string, chatID int64, opts ...bot.Option) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, errTelegramSettings
	}

	// The token is checked on first delivery, not at startup.
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chatID: chatID,
	}, nil
}

// Name implements Transport.
func (t *Telegram) Name() string {
	return "telegram"
}

// Deliver sends title and body as one plain-text message.
func (t *Telegram) Deliver(ctx context.Context, title, body string) error {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   title + "\n" + body,
	}

	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message to chat %d: %w", t.chatID, err)
	}

	return nil
}
