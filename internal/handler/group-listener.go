package handler

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/dispatch"
	"yolda/internal/domain"
)

const previewLimit = 200

// handleGroupMessage scans traffic in watched groups for order
// keywords. A hit is forwarded to the drivers group with a claim button;
// the forward has no order row behind it, so claims against it answer
// as unavailable until a rider submits a real order.
func (h *Handler) handleGroupMessage(ctx context.Context, b *bot.Bot, msg *models.Message) {
	if msg.Chat.ID == h.cfg.DriversGroupID || msg.Text == "" {
		return
	}

	watched, err := h.content.IsWatchedGroup(ctx, msg.Chat.ID)
	if err != nil || !watched {
		return
	}

	keywords, err := h.content.ListKeywords(ctx)
	if err != nil {
		h.logger.Error("Failed to load keywords", zap.Error(err))
		return
	}

	hit := h.matchKeyword(msg.Text, keywords)
	if hit == nil {
		return
	}

	preview := truncatePreview(msg.Text, previewLimit)

	if err := h.content.RecordKeywordHit(ctx, msg.Chat.ID, msg.Chat.Title, &hit.ID, preview); err != nil {
		h.logger.Error("Failed to record keyword hit", zap.Error(err))
	}

	forward := "📣 Guruhdan topilgan buyurtma:\n\n" + dispatch.MaskPhoneNumbers(msg.Text)
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Qabul qilish", CallbackData: dispatch.CallbackClaimPrefix + domain.OrderTypeTaxi},
		}},
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      h.cfg.DriversGroupID,
		Text:        forward,
		ReplyMarkup: keyboard,
	}); err != nil {
		h.logger.Error("Failed to forward keyword hit",
			zap.Error(err),
			zap.Int64("group_id", msg.Chat.ID))
		return
	}

	h.logger.Info("Keyword hit forwarded",
		zap.Int64("group_id", msg.Chat.ID),
		zap.String("keyword", hit.Keyword))
}

// truncatePreview cuts s to at most limit bytes without splitting a rune
func truncatePreview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (h *Handler) matchKeyword(text string, keywords []domain.Keyword) *domain.Keyword {
	lowered := strings.ToLower(text)
	for i := range keywords {
		if keywords[i].Keyword != "" && strings.Contains(lowered, keywords[i].Keyword) {
			return &keywords[i]
		}
	}
	return nil
}
