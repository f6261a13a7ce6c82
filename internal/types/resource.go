package types

import (
	"github.com/google/uuid"
	"time"
)

// Quality tiers assigned by the metadata model. Low never reaches the database.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Declared media kind of an upload.
const (
	MediaKindImage    = "image"
	MediaKindDocument = "document"
)

type Resource struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	Title        string     `gorm:"not null;column:title" json:"title"`
	Category     string     `gorm:"column:category" json:"category"`
	Description  string     `gorm:"column:description" json:"description"`
	Quality      string     `gorm:"not null;column:quality" json:"quality"`
	MediaKind    string     `gorm:"column:media_kind" json:"media_kind"`
	OriginalName string     `gorm:"column:original_name" json:"original_name"`
	MimeType     string     `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes    int64      `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey   string     `gorm:"not null;column:storage_key" json:"storage_key"`
	FileURL      string     `gorm:"column:file_url" json:"file_url"`
	ClaimedByID  *uuid.UUID `gorm:"type:uuid;index;column:claimed_by_id" json:"claimed_by_id,omitempty"`
	ClaimedAt    *time.Time `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Resource) TableName() string {
	return "resource"
}
