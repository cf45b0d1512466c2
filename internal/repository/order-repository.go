package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"yolda/internal/domain"

	"go.uber.org/zap"
)

// ErrOrderNotFound is returned when an order id or announcement reference
// does not resolve to a row.
var ErrOrderNotFound = fmt.Errorf("order not found")

type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// CreateOrder persists a new pending order and returns it
func (r *OrderRepository) CreateOrder(ctx context.Context, telegramID int64, orderType, messageText string) (*domain.Order, error) {
	orderID := domain.GenerateOrderID()

	query := `
		INSERT INTO orders (id, telegram_id, order_type, message_text, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()

	_, err := r.db.ExecContext(ctx, query,
		orderID, telegramID, orderType, messageText, domain.OrderStatusPending, now, now,
	)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return r.GetOrderByID(ctx, orderID)
}

// GetOrderByID retrieves an order by its UUID
func (r *OrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
		SELECT id, telegram_id, order_type, message_text, status,
			   group_message_id, accepted_by_telegram_id, created_at, updated_at
		FROM orders
		WHERE id = ?`

	return r.scanOrder(r.db.QueryRowContext(ctx, query, orderID))
}

// GetOrderByGroupMessageID resolves the order behind a group announcement.
// Claim callbacks only carry the announcement message id.
func (r *OrderRepository) GetOrderByGroupMessageID(ctx context.Context, messageID int) (*domain.Order, error) {
	query := `
		SELECT id, telegram_id, order_type, message_text, status,
			   group_message_id, accepted_by_telegram_id, created_at, updated_at
		FROM orders
		WHERE group_message_id = ?`

	return r.scanOrder(r.db.QueryRowContext(ctx, query, messageID))
}

func (r *OrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	order := &domain.Order{}
	var groupMessageID sql.NullInt64
	var acceptedBy sql.NullInt64

	err := row.Scan(
		&order.ID, &order.TelegramID, &order.OrderType, &order.MessageText, &order.Status,
		&groupMessageID, &acceptedBy, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		r.logger.Error("Failed to scan order", zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if groupMessageID.Valid {
		id := int(groupMessageID.Int64)
		order.GroupMessageID = &id
	}
	if acceptedBy.Valid {
		order.AcceptedByTelegramID = &acceptedBy.Int64
	}

	return order, nil
}

// SetGroupMessageID stores the announcement reference for later in-place edits
func (r *OrderRepository) SetGroupMessageID(ctx context.Context, orderID string, messageID int) error {
	query := `UPDATE orders SET group_message_id = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, messageID, orderID); err != nil {
		r.logger.Error("Failed to set group message id",
			zap.Error(err),
			zap.String("order_id", orderID),
			zap.Int("message_id", messageID))
		return fmt.Errorf("failed to set group message id: %w", err)
	}

	return nil
}

// AcceptOrder marks a pending order accepted by the given driver. Returns
// false when the order was already terminal, so a late accept cannot
// overwrite an earlier disposition.
func (r *OrderRepository) AcceptOrder(ctx context.Context, orderID string, driverTelegramID int64) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, accepted_by_telegram_id = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		domain.OrderStatusAccepted, driverTelegramID, orderID, domain.OrderStatusPending)
	if err != nil {
		r.logger.Error("Failed to accept order", zap.Error(err), zap.String("order_id", orderID))
		return false, fmt.Errorf("failed to accept order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RejectOrder marks a pending order rejected (queue exhausted). Returns
// false when the order was already terminal.
func (r *OrderRepository) RejectOrder(ctx context.Context, orderID string) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query,
		domain.OrderStatusRejected, orderID, domain.OrderStatusPending)
	if err != nil {
		r.logger.Error("Failed to reject order", zap.Error(err), zap.String("order_id", orderID))
		return false, fmt.Errorf("failed to reject order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListRecentOrders returns the newest orders for the admin panel
func (r *OrderRepository) ListRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	query := `
		SELECT id, telegram_id, order_type, message_text, status,
			   group_message_id, accepted_by_telegram_id, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		var groupMessageID sql.NullInt64
		var acceptedBy sql.NullInt64

		if err := rows.Scan(
			&order.ID, &order.TelegramID, &order.OrderType, &order.MessageText, &order.Status,
			&groupMessageID, &acceptedBy, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			r.logger.Warn("Failed to scan order row", zap.Error(err))
			continue
		}

		if groupMessageID.Valid {
			id := int(groupMessageID.Int64)
			order.GroupMessageID = &id
		}
		if acceptedBy.Valid {
			order.AcceptedByTelegramID = &acceptedBy.Int64
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrderStats aggregates order counts for the admin dashboard
func (r *OrderRepository) GetOrderStats(ctx context.Context) (*domain.OrderStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN order_type = 'taxi' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN order_type = 'parcel' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'accepted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM orders`

	stats := &domain.OrderStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalOrders, &stats.TaxiOrders, &stats.ParcelOrders,
		&stats.PendingOrders, &stats.AcceptedOrders, &stats.RejectedOrders,
	)
	if err != nil {
		r.logger.Error("Failed to get order stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get order stats: %w", err)
	}

	return stats, nil
}
