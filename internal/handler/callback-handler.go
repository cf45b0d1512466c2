package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/dispatch"
	"yolda/internal/repository"
)

// handleCallback routes inline button presses. Every callback query is
// answered exactly once, with the toast explaining the outcome.
func (h *Handler) handleCallback(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery) {
	var toast string

	switch {
	case strings.HasPrefix(cq.Data, dispatch.CallbackClaimPrefix):
		toast = h.handleClaimCallback(ctx, cq)
	case strings.HasPrefix(cq.Data, dispatch.CallbackAcceptPrefix):
		orderID := strings.TrimPrefix(cq.Data, dispatch.CallbackAcceptPrefix)
		toast = h.handleAcceptCallback(ctx, orderID, cq.From.ID)
	case strings.HasPrefix(cq.Data, dispatch.CallbackDeclinePrefix):
		orderID := strings.TrimPrefix(cq.Data, dispatch.CallbackDeclinePrefix)
		toast = h.handleDeclineCallback(ctx, orderID, cq.From.ID)
	default:
		h.logger.Warn("Unknown callback data", zap.String("data", cq.Data))
		toast = "❌ Noma'lum buyruq"
	}

	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            toast,
	}); err != nil {
		h.logger.Error("Failed to answer callback query", zap.Error(err))
	}
}

// handleClaimCallback resolves the order behind the announcement the
// button lives on. Keyword forwards carry the same button but no order
// row, so they answer as unavailable.
func (h *Handler) handleClaimCallback(ctx context.Context, cq *models.CallbackQuery) string {
	if cq.Message.Message == nil {
		return "❌ Zakaz mavjud emas"
	}

	order, err := h.orders.GetOrderByGroupMessageID(ctx, cq.Message.Message.ID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return "❌ Zakaz mavjud emas"
		}
		h.logger.Error("Failed to resolve announcement", zap.Error(err))
		return "❌ Xatolik yuz berdi"
	}

	position, err := h.dispatch.Claim(ctx, order.ID, cq.From.ID)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ Siz %d-navbatdasiz", position)
	case errors.Is(err, dispatch.ErrAlreadyClaimed):
		return "⚠️ Siz allaqachon navbatdasiz"
	case errors.Is(err, dispatch.ErrQueueFull):
		return "⛔ Navbat to'ldi"
	case errors.Is(err, dispatch.ErrUnavailable):
		return "❌ Zakaz mavjud emas"
	default:
		h.logger.Error("Claim failed", zap.Error(err), zap.String("order_id", order.ID))
		return "❌ Xatolik yuz berdi"
	}
}

func (h *Handler) handleAcceptCallback(ctx context.Context, orderID string, driverTelegramID int64) string {
	err := h.dispatch.Accept(ctx, orderID, driverTelegramID)
	switch {
	case err == nil:
		return "✅ Zakaz sizniki!"
	case errors.Is(err, dispatch.ErrUnavailable):
		return "❌ Zakaz mavjud emas"
	default:
		h.logger.Error("Accept failed", zap.Error(err), zap.String("order_id", orderID))
		return "❌ Xatolik yuz berdi"
	}
}

func (h *Handler) handleDeclineCallback(ctx context.Context, orderID string, driverTelegramID int64) string {
	err := h.dispatch.Decline(ctx, orderID, driverTelegramID)
	switch {
	case err == nil:
		return "Bekor qilindi"
	case errors.Is(err, dispatch.ErrUnavailable):
		return "❌ Zakaz mavjud emas"
	default:
		h.logger.Error("Decline failed", zap.Error(err), zap.String("order_id", orderID))
		return "❌ Xatolik yuz berdi"
	}
}
