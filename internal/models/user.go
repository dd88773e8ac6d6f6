package models

import "time"

// User represents a chat principal interacting with the bot.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TelegramID int64  `gorm:"not null;uniqueIndex"` // Stable chat identity.
	FirstName  string `gorm:"type:text"`            // Display name.
	Username   string `gorm:"type:text"`            // Chat handle, may be empty.

	Premium      bool `gorm:"not null;default:false"` // Premium tier flag.
	AccountQuota int  `gorm:"not null;default:0"`     // Max active linked accounts.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
