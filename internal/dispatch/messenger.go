package dispatch

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Messenger is the slice of the Telegram API the dispatch service
// needs. The service talks to it instead of *bot.Bot so the queue
// semantics are testable without the network.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// BotMessenger sends through the live Telegram bot
type BotMessenger struct {
	b *bot.Bot
}

func NewBotMessenger(b *bot.Bot) *BotMessenger {
	return &BotMessenger{b: b}
}

func (m *BotMessenger) SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	msg, err := m.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	return msg.ID, nil
}

func (m *BotMessenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := m.b.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

func (m *BotMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := m.b.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}
