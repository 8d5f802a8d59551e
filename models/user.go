package models

import "time"

// User is a registered player account, created by the Telegram registration
// flow. Token is the opaque credential the WebSocket gateway authenticates;
// Username is the stable player identity inside sessions.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID int64     `gorm:"uniqueIndex" json:"telegram_id"`
	Username   string    `gorm:"uniqueIndex" json:"username"`
	Phone      string    `json:"phone"`
	Token      string    `gorm:"uniqueIndex" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
