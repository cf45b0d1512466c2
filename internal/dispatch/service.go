package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"yolda/config"
	"yolda/internal/domain"
	"yolda/internal/repository"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Callback data grammar shared with the bot handlers
const (
	CallbackClaimPrefix   = "claim_"
	CallbackAcceptPrefix  = "accept_"
	CallbackDeclinePrefix = "cancel_"
)

var (
	// ErrUnavailable means the order cannot receive the event: it does
	// not exist, is already taken, or was returned to the pool.
	ErrUnavailable = errors.New("order is not available")

	// ErrAlreadyClaimed means the driver already holds a spot in the
	// order's queue.
	ErrAlreadyClaimed = errors.New("driver already claimed the order")

	// ErrQueueFull means the order's queue reached the configured depth.
	ErrQueueFull = errors.New("order queue is full")
)

// Service owns the order lifecycle: intake and announcement, the claim
// queue, and the one-at-a-time driver notification chain.
type Service struct {
	cfg       *config.Config
	logger    *zap.Logger
	orders    *repository.OrderRepository
	queue     *repository.QueueRepository
	users     *repository.UserRepository
	messenger Messenger
	events    EventPublisher
}

func NewService(
	cfg *config.Config,
	logger *zap.Logger,
	orders *repository.OrderRepository,
	queue *repository.QueueRepository,
	users *repository.UserRepository,
	messenger Messenger,
	events EventPublisher,
) *Service {
	if events == nil {
		events = NopPublisher{}
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		orders:    orders,
		queue:     queue,
		users:     users,
		messenger: messenger,
		events:    events,
	}
}

// Submit persists a new order and announces it to the drivers group with
// phone numbers masked and a single claim button. The announcement
// message id is stored on the order so claim events can find it later.
func (s *Service) Submit(ctx context.Context, telegramID int64, orderType, messageText string) (*domain.Order, error) {
	if !domain.IsValidOrderType(orderType) {
		return nil, fmt.Errorf("unknown order type: %s", orderType)
	}

	order, err := s.orders.CreateOrder(ctx, telegramID, orderType, messageText)
	if err != nil {
		return nil, err
	}

	text := s.renderAnnouncement(ctx, order, nil)
	messageID, err := s.messenger.SendMessage(ctx, s.cfg.DriversGroupID, text, s.claimKeyboard(order))
	if err != nil {
		s.logger.Error("Failed to announce order",
			zap.Error(err),
			zap.String("order_id", order.ID))
		return nil, fmt.Errorf("failed to announce order: %w", err)
	}

	if err := s.orders.SetGroupMessageID(ctx, order.ID, messageID); err != nil {
		return nil, err
	}
	order.GroupMessageID = &messageID

	s.logger.Info("Order announced",
		zap.String("order_id", order.ID),
		zap.String("order_type", order.OrderType),
		zap.Int("message_id", messageID))

	s.events.Publish(OrderEvent{
		Kind:      EventOrderCreated,
		OrderID:   order.ID,
		OrderType: order.OrderType,
		At:        time.Now(),
	})

	return order, nil
}

// Claim adds a driver to the order's queue and returns their 1-based
// position. The first driver in is notified immediately; the rest wait
// their turn. Rejections: ErrUnavailable for a missing or settled order,
// ErrAlreadyClaimed for a second claim by the same driver, ErrQueueFull
// once the queue holds MaxQueueDepth drivers.
func (s *Service) Claim(ctx context.Context, orderID string, driverTelegramID int64) (int, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return 0, ErrUnavailable
		}
		return 0, err
	}
	if order.IsTerminal() {
		return 0, ErrUnavailable
	}

	entry, err := s.queue.InsertClaim(ctx, order.ID, driverTelegramID, s.cfg.MaxQueueDepth)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateClaim):
			return 0, ErrAlreadyClaimed
		case errors.Is(err, repository.ErrQueueCapacity):
			return 0, ErrQueueFull
		default:
			return 0, err
		}
	}

	s.logger.Info("Driver claimed order",
		zap.String("order_id", order.ID),
		zap.Int64("driver_telegram_id", driverTelegramID),
		zap.Int("position", entry.QueuePosition))

	s.events.Publish(OrderEvent{
		Kind:             EventOrderClaimed,
		OrderID:          order.ID,
		OrderType:        order.OrderType,
		DriverTelegramID: driverTelegramID,
		QueuePosition:    entry.QueuePosition,
		At:               time.Now(),
	})

	if entry.QueuePosition == 1 {
		if err := s.notifyNext(ctx, order); err != nil {
			return 0, err
		}
	}

	s.refreshAnnouncement(ctx, order)

	return entry.QueuePosition, nil
}

// Accept settles the order on the notified driver. Only the driver
// currently holding the private offer can accept; everyone else gets
// ErrUnavailable.
func (s *Service) Accept(ctx context.Context, orderID string, driverTelegramID int64) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return ErrUnavailable
		}
		return err
	}
	if order.IsTerminal() {
		return ErrUnavailable
	}

	entry, err := s.queue.GetEntry(ctx, order.ID, driverTelegramID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != domain.QueueStatusNotified {
		return ErrUnavailable
	}

	accepted, err := s.orders.AcceptOrder(ctx, order.ID, driverTelegramID)
	if err != nil {
		return err
	}
	if !accepted {
		return ErrUnavailable
	}

	if _, err := s.queue.MarkAccepted(ctx, order.ID, driverTelegramID); err != nil {
		return err
	}
	order.Status = domain.OrderStatusAccepted
	order.AcceptedByTelegramID = &driverTelegramID

	if entry.DriverMessageID != nil {
		confirmation := fmt.Sprintf("✅ Zakazni qabul qildingiz!\n\n%s %s\n\n%s",
			order.TypeEmoji(), order.TypeLabel(), order.MessageText)
		if err := s.messenger.EditMessage(ctx, driverTelegramID, *entry.DriverMessageID, confirmation, nil); err != nil {
			s.logger.Warn("Failed to edit driver confirmation",
				zap.Error(err),
				zap.String("order_id", order.ID))
		}
	}

	s.refreshAnnouncement(ctx, order)

	s.logger.Info("Order accepted",
		zap.String("order_id", order.ID),
		zap.Int64("driver_telegram_id", driverTelegramID))

	s.events.Publish(OrderEvent{
		Kind:             EventOrderAccepted,
		OrderID:          order.ID,
		OrderType:        order.OrderType,
		DriverTelegramID: driverTelegramID,
		QueuePosition:    entry.QueuePosition,
		At:               time.Now(),
	})

	return nil
}

// Decline drops the driver out of the order's queue. The private offer
// message is deleted; the chain advances only when the declined entry
// was the notified head. Repeated declines and declines on settled
// orders are ErrUnavailable no-ops.
func (s *Service) Decline(ctx context.Context, orderID string, driverTelegramID int64) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return ErrUnavailable
		}
		return err
	}
	if order.IsTerminal() {
		return ErrUnavailable
	}

	entry, err := s.queue.GetEntry(ctx, order.ID, driverTelegramID)
	if err != nil {
		return err
	}
	if entry == nil || !entry.IsActive() {
		return ErrUnavailable
	}

	if err := s.cancelEntry(ctx, order, entry); err != nil {
		return err
	}

	s.refreshAnnouncement(ctx, order)

	return nil
}

// cancelEntry cancels one queue entry and advances the chain when the
// entry held the private offer. The guarded status transition makes the
// whole path a no-op for stale duplicates.
func (s *Service) cancelEntry(ctx context.Context, order *domain.Order, entry *domain.QueueEntry) error {
	wasNotified := entry.Status == domain.QueueStatusNotified

	cancelled, err := s.queue.MarkCancelled(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrUnavailable
	}

	if entry.DriverMessageID != nil {
		if err := s.messenger.DeleteMessage(ctx, entry.DriverTelegramID, *entry.DriverMessageID); err != nil {
			s.logger.Warn("Failed to delete driver offer",
				zap.Error(err),
				zap.String("order_id", order.ID))
		}
	}

	s.logger.Info("Driver declined order",
		zap.String("order_id", order.ID),
		zap.Int64("driver_telegram_id", entry.DriverTelegramID),
		zap.Int("position", entry.QueuePosition))

	s.events.Publish(OrderEvent{
		Kind:             EventDriverDeclined,
		OrderID:          order.ID,
		OrderType:        order.OrderType,
		DriverTelegramID: entry.DriverTelegramID,
		QueuePosition:    entry.QueuePosition,
		At:               time.Now(),
	})

	if wasNotified {
		return s.notifyNext(ctx, order)
	}

	return nil
}

// notifyNext offers the order to the lowest-position waiting driver.
// When the private message cannot be delivered the entry is cancelled
// and the next driver is tried; an empty queue returns the order to the
// pool.
func (s *Service) notifyNext(ctx context.Context, order *domain.Order) error {
	for {
		next, err := s.queue.NextWaiting(ctx, order.ID)
		if err != nil {
			return err
		}
		if next == nil {
			return s.returnToPool(ctx, order)
		}

		offer := fmt.Sprintf("🔔 Sizga navbat keldi!\n\n%s %s\n\n%s",
			order.TypeEmoji(), order.TypeLabel(), order.MessageText)
		if info := s.submitterInfo(ctx, order, false); info != "" {
			offer += "\n\n" + info
		}

		messageID, err := s.messenger.SendMessage(ctx, next.DriverTelegramID, offer, s.offerKeyboard(order))
		if err != nil {
			// Driver never opened a private chat with the bot. Skip them.
			s.logger.Warn("Failed to deliver private offer",
				zap.Error(err),
				zap.String("order_id", order.ID),
				zap.Int64("driver_telegram_id", next.DriverTelegramID))
			if _, err := s.queue.MarkCancelled(ctx, next.ID); err != nil {
				return err
			}
			continue
		}

		if _, err := s.queue.MarkNotified(ctx, next.ID, messageID); err != nil {
			return err
		}

		s.logger.Info("Driver notified",
			zap.String("order_id", order.ID),
			zap.Int64("driver_telegram_id", next.DriverTelegramID),
			zap.Int("position", next.QueuePosition))

		s.events.Publish(OrderEvent{
			Kind:             EventDriverNotified,
			OrderID:          order.ID,
			OrderType:        order.OrderType,
			DriverTelegramID: next.DriverTelegramID,
			QueuePosition:    next.QueuePosition,
			At:               time.Now(),
		})

		return nil
	}
}

// returnToPool handles queue exhaustion: every claim spent without an
// acceptance. The queue is wiped, the order settles as rejected, and the
// drivers group gets a fresh unmasked escalation post without a claim
// button.
func (s *Service) returnToPool(ctx context.Context, order *domain.Order) error {
	if err := s.queue.ClearByOrder(ctx, order.ID); err != nil {
		return err
	}

	rejected, err := s.orders.RejectOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if !rejected {
		return nil
	}
	order.Status = domain.OrderStatusRejected

	escalation := fmt.Sprintf("⚠️ Hech bir haydovchi olmadi, zakaz qaytib keldi:\n\n%s %s\n\n%s",
		order.TypeEmoji(), order.TypeLabel(), order.MessageText)
	if info := s.submitterInfo(ctx, order, false); info != "" {
		escalation += "\n\n" + info
	}

	if _, err := s.messenger.SendMessage(ctx, s.cfg.DriversGroupID, escalation, nil); err != nil {
		s.logger.Error("Failed to post escalation",
			zap.Error(err),
			zap.String("order_id", order.ID))
	}

	s.logger.Info("Order returned to pool", zap.String("order_id", order.ID))

	s.events.Publish(OrderEvent{
		Kind:      EventOrderReturned,
		OrderID:   order.ID,
		OrderType: order.OrderType,
		At:        time.Now(),
	})

	return nil
}

// refreshAnnouncement re-renders the group announcement in place.
// Rendering failure never fails the dispatch operation that caused it.
func (s *Service) refreshAnnouncement(ctx context.Context, order *domain.Order) {
	if !order.IsAnnounced() {
		return
	}

	entries, err := s.queue.ListByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Error("Failed to load queue for announcement",
			zap.Error(err),
			zap.String("order_id", order.ID))
		return
	}

	text := s.renderAnnouncement(ctx, order, entries)

	var markup models.ReplyMarkup
	if order.Status == domain.OrderStatusPending && len(entries) < s.cfg.MaxQueueDepth {
		markup = s.claimKeyboard(order)
	}

	if err := s.messenger.EditMessage(ctx, s.cfg.DriversGroupID, *order.GroupMessageID, text, markup); err != nil {
		s.logger.Warn("Failed to refresh announcement",
			zap.Error(err),
			zap.String("order_id", order.ID))
	}
}

// renderAnnouncement builds the group announcement text: masked order
// details plus the live queue block
func (s *Service) renderAnnouncement(ctx context.Context, order *domain.Order, entries []domain.QueueEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n\n%s", order.TypeEmoji(), order.TypeLabel(), MaskPhoneNumbers(order.MessageText))

	if info := s.submitterInfo(ctx, order, true); info != "" {
		sb.WriteString("\n\n")
		sb.WriteString(info)
	}

	if len(entries) > 0 {
		sb.WriteString("\n\n📋 Navbat:")
		for _, entry := range entries {
			fmt.Fprintf(&sb, "\n%d. %s %s",
				entry.QueuePosition, entry.StatusGlyph(), s.driverLabel(ctx, entry.DriverTelegramID))
		}
	}

	switch order.Status {
	case domain.OrderStatusAccepted:
		sb.WriteString("\n\n✅ Zakaz qabul qilindi")
	case domain.OrderStatusRejected:
		sb.WriteString("\n\n❌ Zakaz bekor qilindi")
	}

	return sb.String()
}

// submitterInfo renders the contact block for the rider behind the
// order. Group announcements get the masked phone; private offers and
// escalations carry it in full so the driver can reach the rider even
// when the order text itself has no number.
func (s *Service) submitterInfo(ctx context.Context, order *domain.Order, masked bool) string {
	user, err := s.users.GetUserByTelegramID(ctx, order.TelegramID)
	if err != nil {
		s.logger.Warn("Failed to load order submitter",
			zap.Error(err),
			zap.String("order_id", order.ID))
		return ""
	}

	name := user.FullName
	if name == "" {
		name = "Noma'lum"
	}
	if !user.HasPhone() {
		return "👤 Ism: " + name
	}

	phone := user.PhoneNumber
	if masked {
		phone = MaskPhoneNumbers(phone)
	}
	return fmt.Sprintf("📞 Telefon: %s\n👤 Ism: %s", phone, name)
}

func (s *Service) driverLabel(ctx context.Context, telegramID int64) string {
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return "Haydovchi"
	}
	return user.DisplayName()
}

func (s *Service) claimKeyboard(order *domain.Order) models.ReplyMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Qabul qilish", CallbackData: CallbackClaimPrefix + order.OrderType},
		}},
	}
}

func (s *Service) offerKeyboard(order *domain.Order) models.ReplyMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Qabul qilish", CallbackData: CallbackAcceptPrefix + order.ID},
			{Text: "❌ Bekor qilish", CallbackData: CallbackDeclinePrefix + order.ID},
		}},
	}
}
