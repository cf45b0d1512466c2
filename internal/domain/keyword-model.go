package domain

import "time"

// Keyword is a watched phrase that triggers a forward from monitored groups
type Keyword struct {
	ID        string    `json:"id" db:"id"`
	Keyword   string    `json:"keyword" db:"keyword"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WatchedGroup is a chat whose messages are scanned for keywords
type WatchedGroup struct {
	ID        string    `json:"id" db:"id"`
	GroupID   int64     `json:"group_id" db:"group_id"`
	GroupName string    `json:"group_name" db:"group_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// KeywordHit records one keyword detection in a watched group
type KeywordHit struct {
	ID             string    `json:"id" db:"id"`
	GroupID        int64     `json:"group_id" db:"group_id"`
	GroupName      string    `json:"group_name" db:"group_name"`
	KeywordID      *string   `json:"keyword_id" db:"keyword_id"`
	MessagePreview string    `json:"message_preview" db:"message_preview"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
