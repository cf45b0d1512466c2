package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntryStatus constants
const (
	QueueStatusWaiting   = "waiting"
	QueueStatusNotified  = "notified"
	QueueStatusAccepted  = "accepted"
	QueueStatusCancelled = "cancelled"
)

// QueueEntry represents one driver's claim on one order. Positions are
// 1-based and assigned in claim arrival order; they are never reused.
type QueueEntry struct {
	ID               string     `json:"id" db:"id"`
	OrderID          string     `json:"order_id" db:"order_id"`
	DriverTelegramID int64      `json:"driver_telegram_id" db:"driver_telegram_id"`
	QueuePosition    int        `json:"queue_position" db:"queue_position"`
	Status           string     `json:"status" db:"status"`
	DriverMessageID  *int       `json:"driver_message_id" db:"driver_message_id"`
	NotifiedAt       *time.Time `json:"notified_at" db:"notified_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// GenerateQueueEntryID generates a new queue entry UUID
func GenerateQueueEntryID() string {
	return uuid.New().String()
}

// queueTransitions is the allowed state machine for a queue entry:
// waiting -> notified -> accepted | cancelled, waiting -> cancelled.
var queueTransitions = map[string][]string{
	QueueStatusWaiting:  {QueueStatusNotified, QueueStatusCancelled},
	QueueStatusNotified: {QueueStatusAccepted, QueueStatusCancelled},
}

// ValidQueueTransition reports whether a queue entry may move from one
// status to another. Terminal statuses allow nothing.
func ValidQueueTransition(from, to string) bool {
	for _, next := range queueTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the entry still participates in the queue
func (e *QueueEntry) IsActive() bool {
	return e.Status == QueueStatusWaiting || e.Status == QueueStatusNotified
}

// StatusGlyph returns the icon rendered next to the driver in the group
// announcement queue block.
func (e *QueueEntry) StatusGlyph() string {
	switch e.Status {
	case QueueStatusNotified:
		return "🔔"
	case QueueStatusCancelled:
		return "❌"
	case QueueStatusAccepted:
		return "✅"
	default:
		return "⏳"
	}
}
