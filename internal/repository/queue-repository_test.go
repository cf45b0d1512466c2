package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yolda/internal/domain"
	"yolda/traits/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	// a second pool connection would see its own empty in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateTables(db, zap.NewNop()))

	return db
}

func createTestOrder(t *testing.T, db *sql.DB) *domain.Order {
	t.Helper()

	orders := NewOrderRepository(db, zap.NewNop())
	order, err := orders.CreateOrder(context.Background(), 1000, domain.OrderTypeTaxi, "test order 90 123 45 67")
	require.NoError(t, err)

	return order
}

func TestInsertClaimPositions(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	for i, driverID := range []int64{11, 22, 33} {
		entry, err := repo.InsertClaim(ctx, order.ID, driverID, 3)
		require.NoError(t, err)
		require.Equal(t, i+1, entry.QueuePosition)
		require.Equal(t, domain.QueueStatusWaiting, entry.Status)
	}

	entries, err := repo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		require.Equal(t, i+1, entry.QueuePosition)
	}
}

func TestInsertClaimDuplicateDriver(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	_, err := repo.InsertClaim(ctx, order.ID, 11, 3)
	require.NoError(t, err)

	_, err = repo.InsertClaim(ctx, order.ID, 11, 3)
	require.ErrorIs(t, err, ErrDuplicateClaim)
}

func TestInsertClaimCapacity(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	for _, driverID := range []int64{11, 22, 33} {
		_, err := repo.InsertClaim(ctx, order.ID, driverID, 3)
		require.NoError(t, err)
	}

	_, err := repo.InsertClaim(ctx, order.ID, 44, 3)
	require.ErrorIs(t, err, ErrQueueCapacity)
}

func TestMapConstraintError(t *testing.T) {
	dup := errors.New("UNIQUE constraint failed: order_queue.order_id, order_queue.driver_telegram_id")
	require.ErrorIs(t, mapConstraintError(dup), ErrDuplicateClaim)

	pos := errors.New("UNIQUE constraint failed: order_queue.order_id, order_queue.queue_position")
	require.ErrorIs(t, mapConstraintError(pos), ErrQueueCapacity)

	other := errors.New("database is locked")
	err := mapConstraintError(other)
	require.NotErrorIs(t, err, ErrDuplicateClaim)
	require.NotErrorIs(t, err, ErrQueueCapacity)
}

func TestNextWaitingOrder(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	first, err := repo.InsertClaim(ctx, order.ID, 11, 3)
	require.NoError(t, err)
	_, err = repo.InsertClaim(ctx, order.ID, 22, 3)
	require.NoError(t, err)

	next, err := repo.NextWaiting(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(11), next.DriverTelegramID)

	cancelled, err := repo.MarkCancelled(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	next, err = repo.NextWaiting(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(22), next.DriverTelegramID)

	second, err := repo.GetEntry(ctx, order.ID, 22)
	require.NoError(t, err)
	cancelled, err = repo.MarkCancelled(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	next, err = repo.NextWaiting(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestMarkCancelledDeduplicates(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	entry, err := repo.InsertClaim(ctx, order.ID, 11, 3)
	require.NoError(t, err)

	cancelled, err := repo.MarkCancelled(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	cancelled, err = repo.MarkCancelled(ctx, entry.ID)
	require.NoError(t, err)
	require.False(t, cancelled)
}

func TestMarkNotifiedGuard(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	entry, err := repo.InsertClaim(ctx, order.ID, 11, 3)
	require.NoError(t, err)

	notified, err := repo.MarkNotified(ctx, entry.ID, 555)
	require.NoError(t, err)
	require.True(t, notified)

	// a repeated notify must not reset the offer
	notified, err = repo.MarkNotified(ctx, entry.ID, 556)
	require.NoError(t, err)
	require.False(t, notified)

	got, err := repo.GetEntry(ctx, order.ID, 11)
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusNotified, got.Status)
	require.NotNil(t, got.DriverMessageID)
	require.Equal(t, 555, *got.DriverMessageID)
	require.NotNil(t, got.NotifiedAt)
}

func TestListStalledNotified(t *testing.T) {
	db := newTestDB(t)
	order := createTestOrder(t, db)
	repo := NewQueueRepository(db, zap.NewNop())
	ctx := context.Background()

	entry, err := repo.InsertClaim(ctx, order.ID, 11, 3)
	require.NoError(t, err)
	_, err = repo.MarkNotified(ctx, entry.ID, 555)
	require.NoError(t, err)

	stalled, err := repo.ListStalledNotified(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Empty(t, stalled)

	// age the offer past the cutoff
	_, err = db.Exec(`UPDATE order_queue SET notified_at = ? WHERE id = ?`,
		time.Now().Add(-10*time.Minute), entry.ID)
	require.NoError(t, err)

	stalled, err = repo.ListStalledNotified(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	require.Equal(t, entry.ID, stalled[0].ID)

	// settled orders are never swept
	orders := NewOrderRepository(db, zap.NewNop())
	_, err = orders.AcceptOrder(ctx, order.ID, 11)
	require.NoError(t, err)

	stalled, err = repo.ListStalledNotified(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Empty(t, stalled)
}

func TestTransitionSourcesFollowStateMachine(t *testing.T) {
	args, clause := transitionSources(domain.QueueStatusNotified)
	require.Equal(t, "?", clause)
	require.Equal(t, []interface{}{domain.QueueStatusWaiting}, args)

	args, clause = transitionSources(domain.QueueStatusAccepted)
	require.Equal(t, "?", clause)
	require.Equal(t, []interface{}{domain.QueueStatusNotified}, args)

	args, clause = transitionSources(domain.QueueStatusCancelled)
	require.Equal(t, "?, ?", clause)
	require.Equal(t, []interface{}{domain.QueueStatusWaiting, domain.QueueStatusNotified}, args)
}
