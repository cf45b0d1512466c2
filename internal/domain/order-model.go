package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderType constants
const (
	OrderTypeTaxi   = "taxi"
	OrderTypeParcel = "parcel"
)

// OrderStatus constants. Accepted and rejected are terminal: no queue
// activity is applied to an order after either.
const (
	OrderStatusPending  = "pending"
	OrderStatusAccepted = "accepted"
	OrderStatusRejected = "rejected"
)

// Order represents a rider's taxi or parcel request
type Order struct {
	ID                   string    `json:"id" db:"id"`
	TelegramID           int64     `json:"telegram_id" db:"telegram_id"`
	OrderType            string    `json:"order_type" db:"order_type"`
	MessageText          string    `json:"message_text" db:"message_text"`
	Status               string    `json:"status" db:"status"`
	GroupMessageID       *int      `json:"group_message_id" db:"group_message_id"`
	AcceptedByTelegramID *int64    `json:"accepted_by_telegram_id" db:"accepted_by_telegram_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// GenerateOrderID generates a new order UUID
func GenerateOrderID() string {
	return uuid.New().String()
}

// IsValidOrderType reports whether t is a known order category
func IsValidOrderType(t string) bool {
	return t == OrderTypeTaxi || t == OrderTypeParcel
}

// IsTerminal reports whether the order has reached a final status
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusAccepted || o.Status == OrderStatusRejected
}

// IsAnnounced reports whether the order has a group announcement to edit
func (o *Order) IsAnnounced() bool {
	return o.GroupMessageID != nil
}

// TypeEmoji returns the announcement icon for the order category
func (o *Order) TypeEmoji() string {
	if o.OrderType == OrderTypeParcel {
		return "📦"
	}
	return "🚕"
}

// TypeLabel returns the announcement label for the order category
func (o *Order) TypeLabel() string {
	if o.OrderType == OrderTypeParcel {
		return "Pochta"
	}
	return "Taxi zakaz"
}

// OrderStats represents aggregate order counts for the admin dashboard
type OrderStats struct {
	TotalOrders    int `json:"total_orders"`
	TaxiOrders     int `json:"taxi_orders"`
	ParcelOrders   int `json:"parcel_orders"`
	PendingOrders  int `json:"pending_orders"`
	AcceptedOrders int `json:"accepted_orders"`
	RejectedOrders int `json:"rejected_orders"`
}
