package types

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"time"
)

// Point entry reason codes.
const (
	PointReasonResourceAccepted = "resource_accepted"
	PointReasonClaimCost        = "claim_cost"
	PointReasonClaimEarning     = "claim_earning"
)

// PointEntry is an append-only ledger row. Entries are never updated or
// deleted; the sum of deltas per user must always equal user.points.
type PointEntry struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Delta        int            `gorm:"not null;column:delta" json:"delta"`
	Reason       string         `gorm:"not null;column:reason" json:"reason"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	BalanceAfter int            `gorm:"not null;column:balance_after" json:"balance_after"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (PointEntry) TableName() string {
	return "point_entry"
}
