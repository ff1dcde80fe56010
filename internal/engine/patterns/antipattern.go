package patterns

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
)

// antiPatternDetector looks at the rough days (stability and clarity both at
// 2 or below) and finds the contributing factor that co-occurs with at least
// half of them. Gate: 3+ rough days.
type antiPatternDetector struct{}

func (antiPatternDetector) Kind() Kind { return KindAntiPattern }

const (
	factorExternalLoad = "high external load"
	factorPoorSleep    = "poor prior-night sleep"
	factorEvening      = "evening dosing"
	factorFullStomach  = "full-stomach dosing"
	factorCaffeine     = "caffeine close to the dose"
)

func (antiPatternDetector) Detect(in Input) *Pattern {
	type roughDay struct {
		doseID    uuid.UUID
		checkInID uuid.UUID
		factors   []string
	}
	var rough []roughDay
	loc := userLocation(in)
	for _, m := range in.Matches {
		if m.CheckIn == nil || m.CheckIn.Stability > 2 || m.CheckIn.Clarity > 2 {
			continue
		}
		day := roughDay{doseID: m.Dose.ID, checkInID: m.CheckIn.ID}
		if m.Dose.ExternalLoad != nil && *m.Dose.ExternalLoad >= 4 {
			day.factors = append(day.factors, factorExternalLoad)
		}
		if m.Dose.SleepQuality != nil && *m.Dose.SleepQuality <= 2 {
			day.factors = append(day.factors, factorPoorSleep)
		}
		if m.Dose.TakenAt.In(loc).Hour() >= in.Policy.EveningHour {
			day.factors = append(day.factors, factorEvening)
		}
		if m.Dose.FoodState != nil && *m.Dose.FoodState == domain.FoodFull {
			day.factors = append(day.factors, factorFullStomach)
		}
		if m.Dose.CaffeineOffsetMin != nil && abs(*m.Dose.CaffeineOffsetMin) <= in.Policy.CaffeineNearMin {
			day.factors = append(day.factors, factorCaffeine)
		}
		rough = append(rough, day)
	}
	if len(rough) < 3 {
		return nil
	}

	counts := map[string]int{}
	for _, day := range rough {
		for _, f := range day.factors {
			counts[f]++
		}
	}
	factors := make([]string, 0, len(counts))
	for f := range counts {
		factors = append(factors, f)
	}
	sort.Slice(factors, func(i, j int) bool {
		if counts[factors[i]] != counts[factors[j]] {
			return counts[factors[i]] > counts[factors[j]]
		}
		return factors[i] < factors[j]
	})
	if len(factors) == 0 {
		return nil
	}

	top := factors[0]
	rate := float64(counts[top]) / float64(len(rough))
	if rate < 0.50 {
		return nil
	}

	var doseIDs, checkInIDs []uuid.UUID
	for _, day := range rough {
		for _, f := range day.factors {
			if f == top {
				doseIDs = append(doseIDs, day.doseID)
				checkInIDs = append(checkInIDs, day.checkInID)
				break
			}
		}
	}
	sortUUIDs(doseIDs)
	sortUUIDs(checkInIDs)

	return &Pattern{
		ID:    patternID(in.User.ID, KindAntiPattern),
		Type:  KindAntiPattern,
		Title: fmt.Sprintf("Rough days keep pairing with %s", top),
		Description: fmt.Sprintf(
			"%d of your %d roughest days (stability and clarity at 2 or below) involved %s.",
			counts[top], len(rough), top),
		Confidence:         clampConfidence(35 + rate*50 + float64(len(rough))*3),
		EvidenceDoseIDs:    doseIDs,
		EvidenceCheckInIDs: checkInIDs,
		Recommendation:     fmt.Sprintf("Before changing your dose, try removing %s on dosing days and see whether the rough days follow.", top),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
