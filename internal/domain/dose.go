package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ThresholdFeel is the user's subjective read on a single dose relative to
// their personal threshold.
type ThresholdFeel string

const (
	FeelNothing   ThresholdFeel = "nothing"
	FeelUnder     ThresholdFeel = "under"
	FeelSweetSpot ThresholdFeel = "sweetspot"
	FeelOver      ThresholdFeel = "over"
)

// DayClassification is the derived quality bucket for a dosing day.
type DayClassification string

const (
	DayGreen        DayClassification = "green"
	DayYellow       DayClassification = "yellow"
	DayRed          DayClassification = "red"
	DayUnclassified DayClassification = "unclassified"
)

const (
	FoodEmpty = "empty"
	FoodLight = "light"
	FoodFull  = "full"
)

// DoseBatch groups dose events that share a substance, a unit and a
// substance-specific reference dose used to normalize carryover load.
type DoseBatch struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Substance string    `gorm:"not null;column:substance" json:"substance"`
	Unit      string    `gorm:"not null;column:unit" json:"unit"`

	// ReferenceDose is the amount that counts as one full acute load (100%).
	ReferenceDose float64 `gorm:"not null;column:reference_dose" json:"reference_dose"`
	// HalfLifeHours is the decay half-life applied to carryover from this batch.
	HalfLifeHours float64 `gorm:"not null;column:half_life_hours" json:"half_life_hours"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DoseBatch) TableName() string { return "dose_batches" }

// DoseEvent is one administered dose. Post-dose scores are filled in exactly
// once (ScoresCompletedAt set); the row is immutable after that.
type DoseEvent struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	BatchID uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`

	Amount  float64   `gorm:"not null;column:amount" json:"amount"`
	Unit    string    `gorm:"not null;column:unit" json:"unit"`
	TakenAt time.Time `gorm:"not null;column:taken_at;index" json:"timestamp"`

	// Post-dose scores, 0-10 ordinals.
	Signal       *int `gorm:"column:signal" json:"signal,omitempty"`
	Texture      *int `gorm:"column:texture" json:"texture,omitempty"`
	Interference *int `gorm:"column:interference" json:"interference,omitempty"`

	ThresholdFeel     *ThresholdFeel    `gorm:"column:threshold_feel;type:text" json:"threshold_feel,omitempty"`
	DayClassification DayClassification `gorm:"column:day_classification;type:text;not null;default:unclassified" json:"day_classification"`

	// Contextual fields, all optional.
	FoodState *string `gorm:"column:food_state" json:"food_state,omitempty"`
	// SleepQuality is the prior night's sleep, 1-5.
	SleepQuality *int    `gorm:"column:sleep_quality" json:"sleep_quality,omitempty"`
	Environment  *string `gorm:"column:environment" json:"environment,omitempty"`
	// CaffeineOffsetMin is caffeine intake time minus dose time, in minutes;
	// negative means caffeine was taken before the dose. Nil means no caffeine
	// was logged around this dose.
	CaffeineOffsetMin *int `gorm:"column:caffeine_offset_min" json:"caffeine_offset_min,omitempty"`
	// ExternalLoad is self-reported outside stress/demand that day, 1-5.
	ExternalLoad *int `gorm:"column:external_load" json:"external_load,omitempty"`
	CycleDay     *int `gorm:"column:cycle_day" json:"cycle_day,omitempty"`

	ScoresCompletedAt *time.Time `gorm:"column:scores_completed_at" json:"scores_completed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DoseEvent) TableName() string { return "dose_events" }
