package dispatch

import "time"

// Dispatch event kinds published to the admin live feed
const (
	EventOrderCreated   = "order_created"
	EventOrderClaimed   = "order_claimed"
	EventDriverNotified = "driver_notified"
	EventOrderAccepted  = "order_accepted"
	EventDriverDeclined = "driver_declined"
	EventOrderReturned  = "order_returned"
)

// OrderEvent is one dispatch lifecycle transition
type OrderEvent struct {
	Kind             string    `json:"kind"`
	OrderID          string    `json:"order_id"`
	OrderType        string    `json:"order_type"`
	DriverTelegramID int64     `json:"driver_telegram_id,omitempty"`
	QueuePosition    int       `json:"queue_position,omitempty"`
	At               time.Time `json:"at"`
}

// EventPublisher receives dispatch events. Publish must not block the
// dispatch path.
type EventPublisher interface {
	Publish(event OrderEvent)
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(OrderEvent) {}
