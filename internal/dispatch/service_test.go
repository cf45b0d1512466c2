package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yolda/config"
	"yolda/internal/domain"
	"yolda/internal/repository"
	"yolda/traits/database"
)

const testGroupID = int64(-100500)

type sentMessage struct {
	chatID int64
	text   string
	markup models.ReplyMarkup
	id     int
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
	markup    models.ReplyMarkup
}

type deletedMessage struct {
	chatID    int64
	messageID int
}

// fakeMessenger records traffic instead of talking to Telegram
type fakeMessenger struct {
	mu          sync.Mutex
	nextID      int
	sent        []sentMessage
	edits       []editedMessage
	deletes     []deletedMessage
	unreachable map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{unreachable: make(map[int64]bool)}
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unreachable[chatID] {
		return 0, fmt.Errorf("chat not found")
	}

	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, markup: markup, id: m.nextID})
	return m.nextID, nil
}

func (m *fakeMessenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.edits = append(m.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, markup: markup})
	return nil
}

func (m *fakeMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes = append(m.deletes, deletedMessage{chatID: chatID, messageID: messageID})
	return nil
}

func (m *fakeMessenger) sentTo(chatID int64) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []sentMessage
	for _, msg := range m.sent {
		if msg.chatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *fakeMessenger) lastEdit() *editedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.edits) == 0 {
		return nil
	}
	return &m.edits[len(m.edits)-1]
}

func newTestService(t *testing.T) (*Service, *fakeMessenger, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateTables(db, zap.NewNop()))

	cfg := &config.Config{
		DriversGroupID: testGroupID,
		MaxQueueDepth:  3,
		NotifyTimeout:  5 * time.Minute,
		SweepInterval:  time.Second,
	}

	logger := zap.NewNop()
	messenger := newFakeMessenger()
	svc := NewService(cfg, logger,
		repository.NewOrderRepository(db, logger),
		repository.NewQueueRepository(db, logger),
		repository.NewUserRepository(db, logger),
		messenger, nil)

	return svc, messenger, db
}

func submitTestOrder(t *testing.T, svc *Service) *domain.Order {
	t.Helper()

	order, err := svc.Submit(context.Background(), 1000, domain.OrderTypeTaxi,
		"Chilonzordan aeroportga, tel 90 123 45 67")
	require.NoError(t, err)
	return order
}

func seedSubmitter(t *testing.T, svc *Service, phone string) {
	t.Helper()
	ctx := context.Background()

	_, err := svc.users.GetOrCreateUser(ctx, 1000, "Rider Riderov", "")
	require.NoError(t, err)
	if phone != "" {
		require.NoError(t, svc.users.SetPhoneNumber(ctx, 1000, phone))
	}
}

func TestSubmitAnnouncesMasked(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)

	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.NotNil(t, order.GroupMessageID)

	announcements := messenger.sentTo(testGroupID)
	require.Len(t, announcements, 1)
	require.Contains(t, announcements[0].text, "90*****67")
	require.NotContains(t, announcements[0].text, "90 123 45 67")
	require.NotNil(t, announcements[0].markup)
	require.Equal(t, *order.GroupMessageID, announcements[0].id)
}

func TestClaimAssignsPositionsAndNotifiesHead(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	pos, err := svc.Claim(ctx, order.ID, 11)
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	// first driver got the unmasked private offer
	offers := messenger.sentTo(11)
	require.Len(t, offers, 1)
	require.Contains(t, offers[0].text, "90 123 45 67")

	pos, err = svc.Claim(ctx, order.ID, 22)
	require.NoError(t, err)
	require.Equal(t, 2, pos)

	pos, err = svc.Claim(ctx, order.ID, 33)
	require.NoError(t, err)
	require.Equal(t, 3, pos)

	// waiting drivers get nothing yet
	require.Empty(t, messenger.sentTo(22))
	require.Empty(t, messenger.sentTo(33))

	// queue full removes the claim button from the announcement
	edit := messenger.lastEdit()
	require.NotNil(t, edit)
	require.Nil(t, edit.markup)
	require.Contains(t, edit.text, "📋 Navbat:")
}

func TestClaimRejections(t *testing.T) {
	svc, _, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	_, err := svc.Claim(ctx, "no-such-order", 11)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Claim(ctx, order.ID, 11)
	require.NoError(t, err)

	_, err = svc.Claim(ctx, order.ID, 11)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	for _, driverID := range []int64{22, 33} {
		_, err = svc.Claim(ctx, order.ID, driverID)
		require.NoError(t, err)
	}

	_, err = svc.Claim(ctx, order.ID, 44)
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestAcceptSettlesOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	_, err := svc.Claim(ctx, order.ID, 11)
	require.NoError(t, err)
	_, err = svc.Claim(ctx, order.ID, 22)
	require.NoError(t, err)

	// only the notified head may accept
	require.ErrorIs(t, svc.Accept(ctx, order.ID, 22), ErrUnavailable)

	require.NoError(t, svc.Accept(ctx, order.ID, 11))

	got, err := svc.orders.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusAccepted, got.Status)
	require.NotNil(t, got.AcceptedByTelegramID)
	require.Equal(t, int64(11), *got.AcceptedByTelegramID)

	// the waiting driver is left untouched
	entry, err := svc.queue.GetEntry(ctx, order.ID, 22)
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusWaiting, entry.Status)

	// further events bounce off the settled order
	require.ErrorIs(t, svc.Accept(ctx, order.ID, 11), ErrUnavailable)
	require.ErrorIs(t, svc.Decline(ctx, order.ID, 22), ErrUnavailable)
	_, err = svc.Claim(ctx, order.ID, 44)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestDeclineAdvancesChain(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	for _, driverID := range []int64{11, 22} {
		_, err := svc.Claim(ctx, order.ID, driverID)
		require.NoError(t, err)
	}

	offerID := messenger.sentTo(11)[0].id

	require.NoError(t, svc.Decline(ctx, order.ID, 11))

	// the declined driver's offer message is deleted
	require.Contains(t, messenger.deletes, deletedMessage{chatID: 11, messageID: offerID})

	// the next driver is notified
	require.Len(t, messenger.sentTo(22), 1)

	// a duplicate decline is a no-op
	require.ErrorIs(t, svc.Decline(ctx, order.ID, 11), ErrUnavailable)
	require.Len(t, messenger.sentTo(22), 1)
}

func TestDeclineByWaitingDriverDoesNotAdvance(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	for _, driverID := range []int64{11, 22, 33} {
		_, err := svc.Claim(ctx, order.ID, driverID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Decline(ctx, order.ID, 22))

	// the head keeps the offer, nobody new is notified
	require.Len(t, messenger.sentTo(11), 1)
	require.Empty(t, messenger.sentTo(33))

	// head declines: the chain skips the cancelled entry
	require.NoError(t, svc.Decline(ctx, order.ID, 11))
	require.Len(t, messenger.sentTo(33), 1)
}

func TestQueueExhaustionReturnsOrderToPool(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	for _, driverID := range []int64{11, 22, 33} {
		_, err := svc.Claim(ctx, order.ID, driverID)
		require.NoError(t, err)
	}
	for _, driverID := range []int64{11, 22, 33} {
		require.NoError(t, svc.Decline(ctx, order.ID, driverID))
	}

	got, err := svc.orders.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusRejected, got.Status)

	entries, err := svc.queue.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	// escalation post: unmasked, no claim button
	group := messenger.sentTo(testGroupID)
	escalation := group[len(group)-1]
	require.Contains(t, escalation.text, "90 123 45 67")
	require.Nil(t, escalation.markup)
}

func TestNotifySkipsUnreachableDriver(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	messenger.unreachable[11] = true

	_, err := svc.Claim(ctx, order.ID, 11)
	require.NoError(t, err)
	_, err = svc.Claim(ctx, order.ID, 22)
	require.NoError(t, err)

	// unreachable head was skipped, second driver holds the offer
	require.Empty(t, messenger.sentTo(11))
	require.Len(t, messenger.sentTo(22), 1)

	entry, err := svc.queue.GetEntry(ctx, order.ID, 11)
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusCancelled, entry.Status)
}

func TestSweeperAdvancesStalledOffer(t *testing.T) {
	svc, messenger, db := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	for _, driverID := range []int64{11, 22} {
		_, err := svc.Claim(ctx, order.ID, driverID)
		require.NoError(t, err)
	}

	// fresh offer: nothing to sweep
	svc.sweepStalledOffers(ctx)
	require.Empty(t, messenger.sentTo(22))

	_, err := db.Exec(`UPDATE order_queue SET notified_at = ? WHERE driver_telegram_id = ?`,
		time.Now().Add(-time.Hour), int64(11))
	require.NoError(t, err)

	svc.sweepStalledOffers(ctx)

	entry, err := svc.queue.GetEntry(ctx, order.ID, 11)
	require.NoError(t, err)
	require.Equal(t, domain.QueueStatusCancelled, entry.Status)
	require.Len(t, messenger.sentTo(22), 1)
}

func TestMessagesCarrySubmitterContact(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	seedSubmitter(t, svc, "+998901112233")
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	// announcement: name plus masked phone only
	ann := messenger.sentTo(testGroupID)[0].text
	require.Contains(t, ann, "Rider Riderov")
	require.Contains(t, ann, "99*****33")
	require.NotContains(t, ann, "998901112233")

	_, err := svc.Claim(ctx, order.ID, 11)
	require.NoError(t, err)

	// private offer: full contact
	offer := messenger.sentTo(11)[0].text
	require.Contains(t, offer, "+998901112233")
	require.Contains(t, offer, "Rider Riderov")

	// sole driver declines: escalation also carries the full contact
	require.NoError(t, svc.Decline(ctx, order.ID, 11))

	group := messenger.sentTo(testGroupID)
	escalation := group[len(group)-1]
	require.Contains(t, escalation.text, "+998901112233")
	require.Contains(t, escalation.text, "Rider Riderov")
}

func TestSubmitterWithoutPhoneShowsNameOnly(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	seedSubmitter(t, svc, "")
	submitTestOrder(t, svc)

	ann := messenger.sentTo(testGroupID)[0].text
	require.Contains(t, ann, "👤 Ism: Rider Riderov")
	require.NotContains(t, ann, "📞")
}

func TestAnnouncementQueueGlyphs(t *testing.T) {
	svc, messenger, _ := newTestService(t)
	order := submitTestOrder(t, svc)
	ctx := context.Background()

	for _, driverID := range []int64{11, 22, 33} {
		_, err := svc.Claim(ctx, order.ID, driverID)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Decline(ctx, order.ID, 11))

	edit := messenger.lastEdit()
	require.NotNil(t, edit)

	lines := strings.Split(edit.text, "\n")
	var queueLines []string
	for _, line := range lines {
		if strings.HasPrefix(line, "1.") || strings.HasPrefix(line, "2.") || strings.HasPrefix(line, "3.") {
			queueLines = append(queueLines, line)
		}
	}
	require.Len(t, queueLines, 3)
	require.Contains(t, queueLines[0], "❌")
	require.Contains(t, queueLines[1], "🔔")
	require.Contains(t, queueLines[2], "⏳")
}
