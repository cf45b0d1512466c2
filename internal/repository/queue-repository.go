package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"yolda/internal/domain"

	"go.uber.org/zap"
)

var (
	// ErrDuplicateClaim means the driver already holds a queue entry for
	// the order.
	ErrDuplicateClaim = errors.New("driver already queued for order")

	// ErrQueueCapacity means the order's queue already holds the maximum
	// number of entries.
	ErrQueueCapacity = errors.New("order queue is full")
)

type QueueRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewQueueRepository(db *sql.DB, logger *zap.Logger) *QueueRepository {
	return &QueueRepository{
		db:     db,
		logger: logger,
	}
}

// InsertClaim adds a driver to the order's queue at position count+1.
// The count-then-insert runs inside a transaction, and the UNIQUE
// constraints on (order_id, queue_position) and
// (order_id, driver_telegram_id) reject any race the transaction misses:
// a position collision surfaces as ErrQueueCapacity (the loser retries
// the claim from the user's side), a driver collision as ErrDuplicateClaim.
func (r *QueueRepository) InsertClaim(ctx context.Context, orderID string, driverTelegramID int64, maxDepth int) (*domain.QueueEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_queue WHERE order_id = ? AND driver_telegram_id = ?`,
		orderID, driverTelegramID,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing claim: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateClaim
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_queue WHERE order_id = ?`, orderID,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	if count >= maxDepth {
		return nil, ErrQueueCapacity
	}

	entry := &domain.QueueEntry{
		ID:               domain.GenerateQueueEntryID(),
		OrderID:          orderID,
		DriverTelegramID: driverTelegramID,
		QueuePosition:    count + 1,
		Status:           domain.QueueStatusWaiting,
		CreatedAt:        time.Now(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_queue (id, order_id, driver_telegram_id, queue_position, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, entry.DriverTelegramID, entry.QueuePosition, entry.Status, entry.CreatedAt,
	)
	if err != nil {
		return nil, mapConstraintError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return entry, nil
}

// transitionSources derives, from the domain state machine, the statuses
// an entry may leave when moving to target. Returned as SQL args plus the
// matching IN-clause placeholder list, so the guarded UPDATEs below
// enforce exactly the documented transitions.
func transitionSources(target string) ([]interface{}, string) {
	all := []string{
		domain.QueueStatusWaiting,
		domain.QueueStatusNotified,
		domain.QueueStatusAccepted,
		domain.QueueStatusCancelled,
	}

	var args []interface{}
	var marks []string
	for _, status := range all {
		if domain.ValidQueueTransition(status, target) {
			args = append(args, status)
			marks = append(marks, "?")
		}
	}
	return args, strings.Join(marks, ", ")
}

// mapConstraintError translates sqlite UNIQUE violations into claim
// rejections
func mapConstraintError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "order_queue.order_id, order_queue.driver_telegram_id") {
		return ErrDuplicateClaim
	}
	if strings.Contains(msg, "order_queue.order_id, order_queue.queue_position") {
		return ErrQueueCapacity
	}
	return fmt.Errorf("failed to insert queue entry: %w", err)
}

// ListByOrder returns all queue entries for an order ordered by position
func (r *QueueRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.QueueEntry, error) {
	query := `
		SELECT id, order_id, driver_telegram_id, queue_position, status,
			   driver_message_id, notified_at, created_at
		FROM order_queue
		WHERE order_id = ?
		ORDER BY queue_position ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list queue entries", zap.Error(err), zap.String("order_id", orderID))
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			r.logger.Warn("Failed to scan queue entry", zap.Error(err))
			continue
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// GetEntry returns the driver's queue entry for an order, or nil
func (r *QueueRepository) GetEntry(ctx context.Context, orderID string, driverTelegramID int64) (*domain.QueueEntry, error) {
	query := `
		SELECT id, order_id, driver_telegram_id, queue_position, status,
			   driver_message_id, notified_at, created_at
		FROM order_queue
		WHERE order_id = ? AND driver_telegram_id = ?`

	rows, err := r.db.QueryContext(ctx, query, orderID, driverTelegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanQueueEntry(rows)
}

// NextWaiting returns the lowest-position waiting entry for an order, or
// nil when the queue is exhausted
func (r *QueueRepository) NextWaiting(ctx context.Context, orderID string) (*domain.QueueEntry, error) {
	query := `
		SELECT id, order_id, driver_telegram_id, queue_position, status,
			   driver_message_id, notified_at, created_at
		FROM order_queue
		WHERE order_id = ? AND status = ?
		ORDER BY queue_position ASC
		LIMIT 1`

	rows, err := r.db.QueryContext(ctx, query, orderID, domain.QueueStatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("failed to find next waiting entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanQueueEntry(rows)
}

// MarkNotified records that the head driver received the private offer.
// Guarded on the waiting status so a repeated notify cannot reset
// notified_at.
func (r *QueueRepository) MarkNotified(ctx context.Context, entryID string, driverMessageID int) (bool, error) {
	sources, clause := transitionSources(domain.QueueStatusNotified)
	query := fmt.Sprintf(`
		UPDATE order_queue
		SET status = ?, driver_message_id = ?, notified_at = ?
		WHERE id = ? AND status IN (%s)`, clause)

	args := append([]interface{}{domain.QueueStatusNotified, driverMessageID, time.Now(), entryID}, sources...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to mark entry notified", zap.Error(err), zap.String("entry_id", entryID))
		return false, fmt.Errorf("failed to mark entry notified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkAccepted moves the notified entry to accepted when the driver takes
// the order
func (r *QueueRepository) MarkAccepted(ctx context.Context, orderID string, driverTelegramID int64) (bool, error) {
	sources, clause := transitionSources(domain.QueueStatusAccepted)
	query := fmt.Sprintf(`
		UPDATE order_queue
		SET status = ?
		WHERE order_id = ? AND driver_telegram_id = ? AND status IN (%s)`, clause)

	args := append([]interface{}{domain.QueueStatusAccepted, orderID, driverTelegramID}, sources...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to mark entry accepted", zap.Error(err), zap.String("order_id", orderID))
		return false, fmt.Errorf("failed to mark entry accepted: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkCancelled cancels an active entry. The guarded WHERE clause makes
// duplicate decline events no-ops: only the first transition reports true.
func (r *QueueRepository) MarkCancelled(ctx context.Context, entryID string) (bool, error) {
	sources, clause := transitionSources(domain.QueueStatusCancelled)
	query := fmt.Sprintf(`
		UPDATE order_queue
		SET status = ?
		WHERE id = ? AND status IN (%s)`, clause)

	args := append([]interface{}{domain.QueueStatusCancelled, entryID}, sources...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to cancel queue entry", zap.Error(err), zap.String("entry_id", entryID))
		return false, fmt.Errorf("failed to cancel queue entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ClearByOrder removes every queue entry for an order. Used when the
// queue is exhausted without acceptance so a fresh announcement starts
// from a clean slate.
func (r *QueueRepository) ClearByOrder(ctx context.Context, orderID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM order_queue WHERE order_id = ?`, orderID); err != nil {
		r.logger.Error("Failed to clear order queue", zap.Error(err), zap.String("order_id", orderID))
		return fmt.Errorf("failed to clear order queue: %w", err)
	}

	return nil
}

// ListStalledNotified returns notified entries older than the cutoff whose
// order is still pending. Feeds the auto-advance sweeper.
func (r *QueueRepository) ListStalledNotified(ctx context.Context, cutoff time.Time) ([]domain.QueueEntry, error) {
	query := `
		SELECT q.id, q.order_id, q.driver_telegram_id, q.queue_position, q.status,
			   q.driver_message_id, q.notified_at, q.created_at
		FROM order_queue q
		JOIN orders o ON o.id = q.order_id
		WHERE q.status = ? AND q.notified_at < ? AND o.status = ?`

	rows, err := r.db.QueryContext(ctx, query,
		domain.QueueStatusNotified, cutoff, domain.OrderStatusPending)
	if err != nil {
		r.logger.Error("Failed to list stalled entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list stalled entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			r.logger.Warn("Failed to scan stalled entry", zap.Error(err))
			continue
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

func scanQueueEntry(rows *sql.Rows) (*domain.QueueEntry, error) {
	entry := &domain.QueueEntry{}
	var driverMessageID sql.NullInt64
	var notifiedAt sql.NullTime

	if err := rows.Scan(
		&entry.ID, &entry.OrderID, &entry.DriverTelegramID, &entry.QueuePosition, &entry.Status,
		&driverMessageID, &notifiedAt, &entry.CreatedAt,
	); err != nil {
		return nil, err
	}

	if driverMessageID.Valid {
		id := int(driverMessageID.Int64)
		entry.DriverMessageID = &id
	}
	if notifiedAt.Valid {
		entry.NotifiedAt = &notifiedAt.Time
	}

	return entry, nil
}
