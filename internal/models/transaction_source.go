package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SourceProcessing = "processing"
	SourceCompleted  = "completed"
	SourceFailed     = "failed"
)

// TransactionSource is one ingested statement file.
type TransactionSource struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Filename        string     `json:"filename"`
	ContentHash     string     `gorm:"size:64;index" json:"content_hash"`
	Status          string     `gorm:"size:16" json:"status"`
	TotalRows       int        `json:"total_rows"`
	CreatedCount    int        `json:"created_count"`
	SkippedCount    int        `json:"skipped_count"`
	MatchedCount    int        `json:"matched_count"`
	UnresolvedCount int        `json:"unresolved_count"`
	DebitorCount    int        `json:"debitor_count"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
