package models

import "time"

// Account represents one linked external credential owned by a user. The
// session blob is always the output of the vault's encrypt operation; the
// plaintext session is never persisted.
type Account struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerID int64 `gorm:"not null;index"` // Owning user's chat identity.

	Phone   string `gorm:"type:text;not null"` // Phone-like identifier.
	APIID   string `gorm:"type:text;not null"` // Opaque application credential id.
	APIHash string `gorm:"type:text;not null"` // Opaque application credential secret.

	SessionEnc string `gorm:"type:text;not null"` // Encrypted session record (nonce:ct:tag hex triple).

	Active bool `gorm:"not null;default:true"` // Cleared on soft deactivation; never hard-deleted.

	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	LastUsedAt *time.Time `gorm:""`                        // Updated whenever the account performs remote work.
}
