// Package patterns runs confidence-gated correlation detectors over matched
// dose and check-in histories. Every detector is a strategy behind one
// interface; sparse data yields no pattern, never an error.
package patterns

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
)

// Kind enumerates the detector families.
type Kind string

const (
	KindFoodState      Kind = "food_state"
	KindWeekday        Kind = "weekday_clustering"
	KindSleepQuality   Kind = "sleep_quality"
	KindEnvironment    Kind = "environment"
	KindCaffeineTiming Kind = "caffeine_timing"
	KindCyclePhase     Kind = "cycle_phase"
	KindBodyMap        Kind = "body_map"
	KindAntiPattern    Kind = "anti_pattern"
)

// Pattern is a confidence-scored, evidence-backed correlation. Field names
// are the compatibility surface consumed by the presentation layer.
type Pattern struct {
	ID                 uuid.UUID   `json:"id"`
	Type               Kind        `json:"type"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Confidence         int         `json:"confidence"`
	EvidenceDoseIDs    []uuid.UUID `json:"evidence_dose_ids"`
	EvidenceCheckInIDs []uuid.UUID `json:"evidence_check_in_ids"`
	Recommendation     string      `json:"recommendation"`
}

// Match pairs a dose with its closest check-in, or with nil when none links
// to it. Computed once per Detect call and shared read-only by every
// detector.
type Match struct {
	Dose    domain.DoseEvent
	CheckIn *domain.CheckIn
}

// Input is what each detector sees: the full histories, the precomputed
// matches and the engine policy.
type Input struct {
	User     domain.User
	Doses    []domain.DoseEvent
	CheckIns []domain.CheckIn
	Matches  []Match
	Policy   engine.Policy
}

// Detector is the strategy contract: return one pattern, or nil when the
// minimum-sample or minimum-separation gate is not met.
type Detector interface {
	Kind() Kind
	Detect(in Input) *Pattern
}

// MatchDosesWithCheckIns pairs each dose with the check-in that references it
// by id, else with the nearest check-in inside the window. Each check-in is
// consumed at most once. Output order follows the doses sorted by time so the
// pairing is deterministic regardless of input order.
func MatchDosesWithCheckIns(doses []domain.DoseEvent, checkIns []domain.CheckIn, window time.Duration) []Match {
	sortedDoses := make([]domain.DoseEvent, len(doses))
	copy(sortedDoses, doses)
	sort.Slice(sortedDoses, func(i, j int) bool {
		if !sortedDoses[i].TakenAt.Equal(sortedDoses[j].TakenAt) {
			return sortedDoses[i].TakenAt.Before(sortedDoses[j].TakenAt)
		}
		return sortedDoses[i].ID.String() < sortedDoses[j].ID.String()
	})
	sortedCheckIns := make([]domain.CheckIn, len(checkIns))
	copy(sortedCheckIns, checkIns)
	sort.Slice(sortedCheckIns, func(i, j int) bool {
		if !sortedCheckIns[i].RecordedAt.Equal(sortedCheckIns[j].RecordedAt) {
			return sortedCheckIns[i].RecordedAt.Before(sortedCheckIns[j].RecordedAt)
		}
		return sortedCheckIns[i].ID.String() < sortedCheckIns[j].ID.String()
	})

	used := make(map[uuid.UUID]bool, len(sortedCheckIns))
	byDoseID := make(map[uuid.UUID]*domain.CheckIn, len(sortedCheckIns))
	for i := range sortedCheckIns {
		ci := &sortedCheckIns[i]
		if ci.DoseEventID != nil {
			if _, taken := byDoseID[*ci.DoseEventID]; !taken {
				byDoseID[*ci.DoseEventID] = ci
			}
		}
	}

	matches := make([]Match, 0, len(sortedDoses))
	for _, dose := range sortedDoses {
		m := Match{Dose: dose}
		if ci, ok := byDoseID[dose.ID]; ok && !used[ci.ID] {
			m.CheckIn = ci
			used[ci.ID] = true
			matches = append(matches, m)
			continue
		}

		var best *domain.CheckIn
		bestGap := window + 1
		for i := range sortedCheckIns {
			ci := &sortedCheckIns[i]
			if used[ci.ID] || ci.DoseEventID != nil {
				continue
			}
			gap := ci.RecordedAt.Sub(dose.TakenAt)
			if gap < 0 {
				gap = -gap
			}
			if gap <= window && gap < bestGap {
				best = ci
				bestGap = gap
			}
		}
		if best != nil {
			m.CheckIn = best
			used[best.ID] = true
		}
		matches = append(matches, m)
	}
	return matches
}

// patternID derives a stable id from (user, kind) so recomputation over
// identical inputs stays byte-identical.
func patternID(userID uuid.UUID, kind Kind) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("doseline:pattern:"+userID.String()+":"+string(kind)))
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clampConfidence(v float64) int {
	if v > 95 {
		v = 95
	}
	if v < 0 {
		v = 0
	}
	return int(v)
}
