package domain

import (
	"time"

	"github.com/google/uuid"
)

// BotUser represents a rider, driver or admin known to the bot
type BotUser struct {
	ID          string    `json:"id" db:"id"`
	TelegramID  int64     `json:"telegram_id" db:"telegram_id"`
	FullName    string    `json:"full_name" db:"full_name"`
	Username    string    `json:"username" db:"username"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	IsAdmin     bool      `json:"is_admin" db:"is_admin"`
	IsBlocked   bool      `json:"is_blocked" db:"is_blocked"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// GenerateUserID generates a new user UUID
func GenerateUserID() string {
	return uuid.New().String()
}

// HasPhone reports whether onboarding has captured the user's contact
func (u *BotUser) HasPhone() bool {
	return u.PhoneNumber != ""
}

// DisplayName returns how the user is shown in queue blocks and
// notifications: @username when set, full name otherwise.
func (u *BotUser) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "Haydovchi"
}
