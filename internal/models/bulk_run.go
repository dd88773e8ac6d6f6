package models

import (
	"time"

	"gorm.io/datatypes"
)

// BulkRun records the reconciled outcome of one bulk creation run.
type BulkRun struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RunID string `gorm:"type:text;not null;uniqueIndex"` // Run identifier (uuid).

	OwnerID   int64  `gorm:"not null;index"` // Initiating user's chat identity.
	AccountID uint64 `gorm:"not null;index"` // Account the run executed against.

	Requested int `gorm:"not null"` // Items requested.
	Succeeded int `gorm:"not null"` // Items that created a group.
	Failed    int `gorm:"not null"` // Items that failed.

	ItemErrors datatypes.JSON `gorm:"type:jsonb"` // Per-item failure reasons keyed by index.

	StartedAt  time.Time `gorm:"not null"` // Run start.
	FinishedAt time.Time `gorm:"not null"` // Run end.
}
