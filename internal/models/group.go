package models

import "time"

// Group records one successfully created remote group. Rows are immutable
// after creation.
type Group struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name       string `gorm:"type:text;not null"` // Group title used at creation.
	RemoteID   int64  `gorm:"not null;index"`     // Remote chat identifier.
	InviteLink string `gorm:"type:text"`          // Invite reference, may be empty.

	AccountID uint64 `gorm:"not null;index"` // Originating account.
	OwnerID   int64  `gorm:"not null;index"` // Owning user's chat identity.

	MemberCount int `gorm:"not null;default:0"` // Member count reported at creation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
