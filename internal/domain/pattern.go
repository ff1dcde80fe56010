package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PatternRecord is the persisted form of a detected pattern, kept so callers
// can show detection history. The live engine output is recomputed on demand;
// these rows are written by the nightly refresh job.
type PatternRecord struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Kind        string `gorm:"not null;column:kind;index" json:"type"`
	Title       string `gorm:"not null;column:title" json:"title"`
	Description string `gorm:"not null;column:description;type:text" json:"description"`
	Confidence  int    `gorm:"not null;column:confidence" json:"confidence"`

	EvidenceDoseIDs    datatypes.JSON `gorm:"column:evidence_dose_ids;type:jsonb" json:"evidence_dose_ids"`
	EvidenceCheckInIDs datatypes.JSON `gorm:"column:evidence_check_in_ids;type:jsonb" json:"evidence_check_in_ids"`

	Recommendation string `gorm:"column:recommendation;type:text" json:"recommendation"`

	DetectedAt time.Time      `gorm:"not null;column:detected_at;index" json:"detected_at"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PatternRecord) TableName() string { return "pattern_records" }
