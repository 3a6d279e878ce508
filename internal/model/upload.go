package model

import (
	"time"

	"github.com/google/uuid"
)

// Upload records which user stored a blob. A todo may only reference blobs
// its owner uploaded.
type Upload struct {
	StorageID string    `json:"storage_id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `json:"created_at"`
}
