package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CheckIn is a subjective-state snapshot, optionally linked to a dose either
// explicitly (DoseEventID) or by temporal proximity. Immutable once created.
type CheckIn struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	DoseEventID *uuid.UUID `gorm:"type:uuid;column:dose_event_id;index" json:"dose_event_id,omitempty"`

	RecordedAt time.Time `gorm:"not null;column:recorded_at;index" json:"timestamp"`

	// Signals, 1-5 each.
	Energy    int `gorm:"not null;column:energy" json:"energy"`
	Clarity   int `gorm:"not null;column:clarity" json:"clarity"`
	Stability int `gorm:"not null;column:stability" json:"stability"`

	// BodyMap is a JSON array of body region tags ("jaw", "shoulders", ...).
	BodyMap datatypes.JSON `gorm:"column:body_map;type:jsonb" json:"body_map,omitempty"`

	Note string `gorm:"column:note;type:text" json:"note,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CheckIn) TableName() string { return "check_ins" }

// BodyRegions decodes the body map column; malformed or empty payloads come
// back as no regions rather than an error.
func (c CheckIn) BodyRegions() []string {
	if len(c.BodyMap) == 0 {
		return nil
	}
	var regions []string
	if err := json.Unmarshal(c.BodyMap, &regions); err != nil {
		return nil
	}
	return regions
}
