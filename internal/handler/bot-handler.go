package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"yolda/internal/domain"
	"yolda/internal/state"
)

// Main menu button labels
const (
	buttonTaxiOrder    = "🚕 Taksi buyurtma"
	buttonParcelOrder  = "📦 Pochta yuborish"
	buttonBecomeDriver = "🚗 Haydovchi bo'lish"
	buttonInfo         = "ℹ️ Ma'lumot"
	buttonContact      = "📞 Aloqa"
)

// Admin menu button labels
const (
	buttonAdminAddGroup     = "➕ Guruh qo'shish"
	buttonAdminKeywords     = "🔑 Kalit so'z qo'shish"
	buttonAdminUsers        = "👥 Foydalanuvchilar"
	buttonAdminBlock        = "🚫 Bloklash"
	buttonAdminPromote      = "👮 Admin qo'shish"
	buttonAdminEditTexts    = "📝 Matnni tahrirlash"
	buttonAdminToggleDrvReg = "🚗 Registratsiyani almashtirish"
	buttonAdminStats        = "📊 Statistika"
)

// HandleUpdate is the bot's default handler: it routes callback queries
// to the dispatch callbacks, group traffic to the keyword listener, and
// private messages to the conversation flow.
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		h.handleCallback(ctx, b, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	msg := update.Message
	if msg.Chat.Type == "group" || msg.Chat.Type == "supergroup" {
		h.handleGroupMessage(ctx, b, msg)
		return
	}
	if msg.Chat.Type != "private" || msg.From == nil {
		return
	}

	h.handlePrivateMessage(ctx, b, msg)
}

func (h *Handler) handlePrivateMessage(ctx context.Context, b *bot.Bot, msg *models.Message) {
	fullName := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	user, err := h.users.GetOrCreateUser(ctx, msg.From.ID, fullName, msg.From.Username)
	if err != nil {
		h.logger.Error("Failed to resolve user", zap.Error(err), zap.Int64("telegram_id", msg.From.ID))
		return
	}

	if user.IsBlocked {
		h.sendText(ctx, b, user.TelegramID,
			h.text(ctx, "blocked_notice", "❌ Siz botdan foydalanishdan bloklangansiz."), nil)
		return
	}

	if msg.Contact != nil {
		h.handleContact(ctx, b, msg, user.TelegramID)
		return
	}

	switch msg.Text {
	case "/start":
		h.state.Clear(ctx, user.TelegramID)
		if !user.HasPhone() {
			h.sendContactRequest(ctx, b, user.TelegramID)
			return
		}
		h.sendMainMenu(ctx, b, user.TelegramID)
		return
	case "/aloqa", buttonContact:
		h.sendText(ctx, b, user.TelegramID,
			h.text(ctx, "contact_admin", "📞 Admin bilan bog'lanish: @admin"), nil)
		return
	case "/malumot", buttonInfo:
		h.sendText(ctx, b, user.TelegramID,
			h.text(ctx, "bot_info", "ℹ️ Yolda: taksi va pochta buyurtmalari uchun bot."), nil)
		return
	case "/admin":
		if h.isAdmin(ctx, user.TelegramID) {
			h.state.Clear(ctx, user.TelegramID)
			h.sendAdminMenu(ctx, b, user.TelegramID)
		}
		return
	}

	// Onboarding is not finished until the phone number is shared
	if !user.HasPhone() {
		h.sendContactRequest(ctx, b, user.TelegramID)
		return
	}

	if h.handleMenuButton(ctx, b, msg, user.TelegramID) {
		return
	}

	if h.isAdmin(ctx, user.TelegramID) && h.handleAdminButton(ctx, b, msg, user.TelegramID) {
		return
	}

	h.handleStatefulMessage(ctx, b, msg, user.TelegramID)
}

func (h *Handler) handleContact(ctx context.Context, b *bot.Bot, msg *models.Message, telegramID int64) {
	// Only accept the user's own contact card
	if msg.Contact.UserID != telegramID {
		h.sendContactRequest(ctx, b, telegramID)
		return
	}

	if err := h.users.SetPhoneNumber(ctx, telegramID, msg.Contact.PhoneNumber); err != nil {
		h.logger.Error("Failed to store phone number", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return
	}

	h.logger.Info("User onboarded", zap.Int64("telegram_id", telegramID))
	h.sendMainMenu(ctx, b, telegramID)
}

// handleMenuButton reacts to the main menu reply keyboard. Returns true
// when the message was consumed.
func (h *Handler) handleMenuButton(ctx context.Context, b *bot.Bot, msg *models.Message, telegramID int64) bool {
	switch msg.Text {
	case buttonTaxiOrder:
		h.state.Set(ctx, telegramID, state.StateWaitingTaxiOrder)
		h.sendText(ctx, b, telegramID,
			h.text(ctx, "taxi_order", "🚕 Buyurtmangizni yozing: qayerdan, qayerga, telefon raqamingiz."), nil)
		return true
	case buttonParcelOrder:
		h.state.Set(ctx, telegramID, state.StateWaitingParcelText)
		h.sendText(ctx, b, telegramID,
			h.text(ctx, "parcel_order", "📦 Pochta tafsilotlarini yozing: qayerdan, qayerga, telefon raqamingiz."), nil)
		return true
	case buttonBecomeDriver:
		h.sendText(ctx, b, telegramID,
			h.text(ctx, "vip_info", "🚗 Haydovchi bo'lish uchun admin bilan bog'laning: @admin"), nil)
		return true
	}

	return false
}

// handleStatefulMessage consumes a plain message according to the user's
// conversation state
func (h *Handler) handleStatefulMessage(ctx context.Context, b *bot.Bot, msg *models.Message, telegramID int64) {
	userState, err := h.state.Get(ctx, telegramID)
	if err != nil {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch {
	case userState == state.StateWaitingTaxiOrder:
		h.submitOrder(ctx, b, telegramID, domain.OrderTypeTaxi, text)
	case userState == state.StateWaitingParcelText:
		h.submitOrder(ctx, b, telegramID, domain.OrderTypeParcel, text)
	case strings.HasPrefix(userState, "waiting_") || strings.HasPrefix(userState, state.StateEditingTextPrefix):
		if h.isAdmin(ctx, telegramID) {
			h.handleAdminInput(ctx, b, telegramID, userState, text)
			return
		}
		h.state.Clear(ctx, telegramID)
		h.sendMainMenu(ctx, b, telegramID)
	default:
		h.sendMainMenu(ctx, b, telegramID)
	}
}

func (h *Handler) submitOrder(ctx context.Context, b *bot.Bot, telegramID int64, orderType, text string) {
	h.state.Clear(ctx, telegramID)

	order, err := h.dispatch.Submit(ctx, telegramID, orderType, text)
	if err != nil {
		h.logger.Error("Failed to submit order",
			zap.Error(err),
			zap.Int64("telegram_id", telegramID),
			zap.String("order_type", orderType))
		h.sendText(ctx, b, telegramID,
			"❌ Buyurtma yuborilmadi, birozdan so'ng qayta urinib ko'ring.", nil)
		return
	}

	h.sendText(ctx, b, telegramID,
		h.text(ctx, "order_sent", "✅ Buyurtmangiz haydovchilarga yuborildi!"), nil)
	h.logger.Info("Order submitted via bot",
		zap.String("order_id", order.ID),
		zap.Int64("telegram_id", telegramID))
}

// handleAdminButton reacts to the admin reply keyboard. Returns true
// when the message was consumed.
func (h *Handler) handleAdminButton(ctx context.Context, b *bot.Bot, msg *models.Message, telegramID int64) bool {
	switch msg.Text {
	case buttonAdminAddGroup:
		h.state.Set(ctx, telegramID, state.StateWaitingGroupID)
		h.sendText(ctx, b, telegramID, "Guruh ID raqamini yuboring (masalan -1001234567890):", nil)
	case buttonAdminKeywords:
		h.state.Set(ctx, telegramID, state.StateWaitingKeywords)
		h.sendText(ctx, b, telegramID, "Kalit so'zlarni yuboring, har birini yangi qatordan:", nil)
	case buttonAdminUsers:
		count, err := h.users.CountUsers(ctx)
		if err != nil {
			h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
			return true
		}
		h.sendText(ctx, b, telegramID, fmt.Sprintf("👥 Foydalanuvchilar soni: %d", count), nil)
	case buttonAdminBlock:
		h.state.Set(ctx, telegramID, state.StateWaitingBlockPhone)
		h.sendText(ctx, b, telegramID, "Bloklash uchun telefon raqamini yuboring:", nil)
	case buttonAdminPromote:
		h.state.Set(ctx, telegramID, state.StateWaitingAdminID)
		h.sendText(ctx, b, telegramID, "Yangi admin Telegram ID raqamini yuboring:", nil)
	case buttonAdminEditTexts:
		keys, err := h.content.ListTextKeys(ctx)
		if err != nil {
			h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
			return true
		}
		h.state.Set(ctx, telegramID, state.StateWaitingTextKey)
		h.sendText(ctx, b, telegramID,
			"Qaysi matnni tahrirlaysiz? Kalitni yuboring:\n\n"+strings.Join(keys, "\n"), nil)
	case buttonAdminToggleDrvReg:
		h.toggleDriverRegistration(ctx, b, telegramID)
	case buttonAdminStats:
		h.sendStats(ctx, b, telegramID)
	default:
		return false
	}

	return true
}

// handleAdminInput consumes the admin's reply for the pending admin state
func (h *Handler) handleAdminInput(ctx context.Context, b *bot.Bot, telegramID int64, userState, text string) {
	// cleared up front so the text-key branch can set the follow-up state
	h.state.Clear(ctx, telegramID)

	switch {
	case userState == state.StateWaitingGroupID:
		groupID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			h.sendText(ctx, b, telegramID, "❌ Noto'g'ri guruh ID.", nil)
			return
		}
		if err := h.content.UpsertWatchedGroup(ctx, groupID, ""); err != nil {
			h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
			return
		}
		h.sendText(ctx, b, telegramID, "✅ Guruh kuzatuvga qo'shildi.", nil)

	case userState == state.StateWaitingKeywords:
		added := 0
		for _, line := range strings.Split(text, "\n") {
			keyword := strings.ToLower(strings.TrimSpace(line))
			if keyword == "" {
				continue
			}
			if err := h.content.UpsertKeyword(ctx, keyword); err == nil {
				added++
			}
		}
		h.sendText(ctx, b, telegramID, fmt.Sprintf("✅ %d ta kalit so'z qo'shildi.", added), nil)

	case userState == state.StateWaitingBlockPhone:
		blocked, err := h.users.BlockByPhone(ctx, strings.TrimSpace(text))
		if err != nil {
			h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
			return
		}
		h.sendText(ctx, b, telegramID, fmt.Sprintf("🚫 %d ta foydalanuvchi bloklandi.", blocked), nil)

	case userState == state.StateWaitingAdminID:
		adminID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			h.sendText(ctx, b, telegramID, "❌ Noto'g'ri Telegram ID.", nil)
			return
		}
		promoted, err := h.users.PromoteAdmin(ctx, adminID)
		if err != nil || !promoted {
			h.sendText(ctx, b, telegramID, "❌ Foydalanuvchi topilmadi.", nil)
			return
		}
		h.sendText(ctx, b, telegramID, "✅ Yangi admin qo'shildi.", nil)

	case userState == state.StateWaitingTextKey:
		key := strings.TrimSpace(text)
		existing, err := h.content.GetText(ctx, key)
		if err != nil || existing == "" {
			h.sendText(ctx, b, telegramID, "❌ Bunday kalit topilmadi.", nil)
			return
		}
		h.state.Set(ctx, telegramID, state.StateEditingTextPrefix+key)
		h.sendText(ctx, b, telegramID, "Yangi matnni yuboring:\n\nHozirgi matn:\n"+existing, nil)

	case strings.HasPrefix(userState, state.StateEditingTextPrefix):
		key := strings.TrimPrefix(userState, state.StateEditingTextPrefix)
		updated, err := h.content.SetText(ctx, key, text)
		if err != nil || !updated {
			h.sendText(ctx, b, telegramID, "❌ Matn saqlanmadi.", nil)
			return
		}
		h.sendText(ctx, b, telegramID, "✅ Matn yangilandi.", nil)
	}
}

func (h *Handler) toggleDriverRegistration(ctx context.Context, b *bot.Bot, telegramID int64) {
	current, err := h.content.GetSetting(ctx, "driver_registration_enabled")
	if err != nil {
		h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
		return
	}

	next := "true"
	if current == "true" {
		next = "false"
	}

	if err := h.content.SetSetting(ctx, "driver_registration_enabled", next); err != nil {
		h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
		return
	}

	if next == "true" {
		h.sendText(ctx, b, telegramID, "✅ Haydovchi registratsiyasi yoqildi.", nil)
	} else {
		h.sendText(ctx, b, telegramID, "⏸ Haydovchi registratsiyasi o'chirildi.", nil)
	}
}

func (h *Handler) sendStats(ctx context.Context, b *bot.Bot, telegramID int64) {
	stats, err := h.orders.GetOrderStats(ctx)
	if err != nil {
		h.sendText(ctx, b, telegramID, "❌ Xatolik yuz berdi.", nil)
		return
	}

	text := fmt.Sprintf(
		"📊 Statistika\n\nJami: %d\n🚕 Taksi: %d\n📦 Pochta: %d\n\n⏳ Kutilmoqda: %d\n✅ Qabul qilindi: %d\n❌ Bekor qilindi: %d",
		stats.TotalOrders, stats.TaxiOrders, stats.ParcelOrders,
		stats.PendingOrders, stats.AcceptedOrders, stats.RejectedOrders)

	h.sendText(ctx, b, telegramID, text, nil)
}

// Keyboards

func (h *Handler) sendContactRequest(ctx context.Context, b *bot.Bot, telegramID int64) {
	keyboard := &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{{
			{Text: "📱 Raqamni yuborish", RequestContact: true},
		}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}

	h.sendText(ctx, b, telegramID,
		h.text(ctx, "welcome_phone", "👋 Assalomu alaykum! Davom etish uchun telefon raqamingizni yuboring."),
		keyboard)
}

func (h *Handler) sendMainMenu(ctx context.Context, b *bot.Bot, telegramID int64) {
	rows := [][]models.KeyboardButton{
		{{Text: buttonTaxiOrder}, {Text: buttonParcelOrder}},
		{{Text: buttonInfo}, {Text: buttonContact}},
	}

	if enabled, err := h.content.GetSetting(ctx, "driver_registration_enabled"); err == nil && enabled == "true" {
		rows = append(rows, []models.KeyboardButton{{Text: buttonBecomeDriver}})
	}

	keyboard := &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
	}

	h.sendText(ctx, b, telegramID,
		h.text(ctx, "main_menu", "Kerakli bo'limni tanlang:"), keyboard)
}

func (h *Handler) sendAdminMenu(ctx context.Context, b *bot.Bot, telegramID int64) {
	keyboard := &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: buttonAdminAddGroup}, {Text: buttonAdminKeywords}},
			{{Text: buttonAdminUsers}, {Text: buttonAdminBlock}},
			{{Text: buttonAdminPromote}, {Text: buttonAdminEditTexts}},
			{{Text: buttonAdminToggleDrvReg}, {Text: buttonAdminStats}},
		},
		ResizeKeyboard: true,
	}

	h.sendText(ctx, b, telegramID,
		h.text(ctx, "admin_welcome", "👮 Admin paneliga xush kelibsiz!"), keyboard)
}

func (h *Handler) sendText(ctx context.Context, b *bot.Bot, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
