package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends photos through the Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if chatID == 0 {
		return fmt.Errorf("telegram: no chat configured")
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

var _ Messenger = (*Telegram)(nil)
