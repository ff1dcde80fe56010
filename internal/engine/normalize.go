package engine

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/evelark/doseline-backend/internal/domain"
)

// RawDoseRow is the loose shape the persistence layer hands over. Unknown
// JSON fields are ignored by decoding; missing or out-of-range required
// fields drop the row, never the batch.
type RawDoseRow struct {
	ID           string  `json:"id"`
	BatchID      string  `json:"batch_id"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
	Timestamp    string  `json:"timestamp"`
	Signal       *int    `json:"signal"`
	Texture      *int    `json:"texture"`
	Interference *int    `json:"interference"`

	ThresholdFeel     string `json:"threshold_feel"`
	FoodState         string `json:"food_state"`
	SleepQuality      *int   `json:"sleep_quality"`
	Environment       string `json:"environment"`
	CaffeineOffsetMin *int   `json:"caffeine_offset_min"`
	ExternalLoad      *int   `json:"external_load"`
	CycleDay          *int   `json:"cycle_day"`
}

type RawCheckInRow struct {
	ID          string   `json:"id"`
	DoseEventID string   `json:"dose_event_id"`
	Timestamp   string   `json:"timestamp"`
	Energy      *int     `json:"energy"`
	Clarity     *int     `json:"clarity"`
	Stability   *int     `json:"stability"`
	BodyMap     []string `json:"body_map"`
}

// NormalizeDoseRows maps raw diary rows into canonical dose events and derives
// each row's day classification. Malformed rows are skipped.
func NormalizeDoseRows(rows []RawDoseRow, p Policy) []domain.DoseEvent {
	out := make([]domain.DoseEvent, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(strings.TrimSpace(row.ID))
		if err != nil {
			continue
		}
		unit := strings.TrimSpace(strings.ToLower(row.Unit))
		if row.Amount <= 0 || unit == "" {
			continue
		}
		takenAt, err := parseTimestamp(row.Timestamp)
		if err != nil {
			continue
		}

		ev := domain.DoseEvent{
			ID:      id,
			Amount:  row.Amount,
			Unit:    unit,
			TakenAt: takenAt,
		}
		if batchID, err := uuid.Parse(strings.TrimSpace(row.BatchID)); err == nil {
			ev.BatchID = batchID
		}

		ev.Signal = ordinal(row.Signal, 0, 10)
		ev.Texture = ordinal(row.Texture, 0, 10)
		ev.Interference = ordinal(row.Interference, 0, 10)

		if feel, ok := parseThresholdFeel(row.ThresholdFeel); ok {
			ev.ThresholdFeel = &feel
		}
		if fs := parseFoodState(row.FoodState); fs != "" {
			ev.FoodState = &fs
		}
		ev.SleepQuality = ordinal(row.SleepQuality, 1, 5)
		if env := strings.TrimSpace(strings.ToLower(row.Environment)); env != "" {
			ev.Environment = &env
		}
		ev.CaffeineOffsetMin = row.CaffeineOffsetMin
		ev.ExternalLoad = ordinal(row.ExternalLoad, 1, 5)
		if row.CycleDay != nil && *row.CycleDay >= 1 && *row.CycleDay <= 60 {
			ev.CycleDay = row.CycleDay
		}

		ev.DayClassification = ClassifyDay(ev.Signal, ev.Texture, ev.Interference, p)
		out = append(out, ev)
	}
	return out
}

// NormalizeCheckInRows maps raw check-in rows into canonical records. All
// three signals are required and must sit in 1-5.
func NormalizeCheckInRows(rows []RawCheckInRow) []domain.CheckIn {
	out := make([]domain.CheckIn, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(strings.TrimSpace(row.ID))
		if err != nil {
			continue
		}
		recordedAt, err := parseTimestamp(row.Timestamp)
		if err != nil {
			continue
		}
		energy := ordinal(row.Energy, 1, 5)
		clarity := ordinal(row.Clarity, 1, 5)
		stability := ordinal(row.Stability, 1, 5)
		if energy == nil || clarity == nil || stability == nil {
			continue
		}

		ci := domain.CheckIn{
			ID:         id,
			RecordedAt: recordedAt,
			Energy:     *energy,
			Clarity:    *clarity,
			Stability:  *stability,
		}
		if doseID, err := uuid.Parse(strings.TrimSpace(row.DoseEventID)); err == nil {
			ci.DoseEventID = &doseID
		}
		if len(row.BodyMap) > 0 {
			ci.BodyMap = datatypes.JSON(mustJSONStrings(row.BodyMap))
		}
		out = append(out, ci)
	}
	return out
}

// ClassifyDay derives the green/yellow/red bucket from post-dose scores.
// Incomplete scores leave the day unclassified.
func ClassifyDay(signal, texture, interference *int, p Policy) domain.DayClassification {
	if signal == nil || texture == nil || interference == nil {
		return domain.DayUnclassified
	}
	if *interference >= p.RedInterferenceMin || *signal <= p.RedSignalMax {
		return domain.DayRed
	}
	if *signal >= p.GreenSignalMin && *interference <= p.GreenInterferenceMax {
		return domain.DayGreen
	}
	return domain.DayYellow
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse("2006-01-02 15:04:05", raw)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}

func parseThresholdFeel(raw string) (domain.ThresholdFeel, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "nothing":
		return domain.FeelNothing, true
	case "under":
		return domain.FeelUnder, true
	case "sweetspot", "sweet_spot":
		return domain.FeelSweetSpot, true
	case "over":
		return domain.FeelOver, true
	}
	return "", false
}

func parseFoodState(raw string) string {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case domain.FoodEmpty, domain.FoodLight, domain.FoodFull:
		return strings.TrimSpace(strings.ToLower(raw))
	}
	return ""
}

func ordinal(v *int, lo, hi int) *int {
	if v == nil || *v < lo || *v > hi {
		return nil
	}
	val := *v
	return &val
}

func mustJSONStrings(values []string) []byte {
	b, err := json.Marshal(values)
	if err != nil {
		return []byte("[]")
	}
	return b
}
