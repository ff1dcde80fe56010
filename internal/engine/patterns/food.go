package patterns

import "fmt"

// foodStateDetector compares mean clarity across empty/light/full stomach
// doses. Gate: at least 8 matched samples, at least two states with 3+
// samples each, and 0.8+ clarity separation between best and worst.
type foodStateDetector struct{}

func (foodStateDetector) Kind() Kind { return KindFoodState }

func (foodStateDetector) Detect(in Input) *Pattern {
	groups := map[string][]groupSample{}
	total := 0
	for _, m := range in.Matches {
		if m.CheckIn == nil || m.Dose.FoodState == nil {
			continue
		}
		groups[*m.Dose.FoodState] = append(groups[*m.Dose.FoodState], groupSample{
			value:     float64(m.CheckIn.Clarity),
			doseID:    m.Dose.ID,
			checkInID: m.CheckIn.ID,
		})
		total++
	}
	if total < 8 {
		return nil
	}
	stats := summarizeGroups(groups, 3)
	if len(stats) < 2 {
		return nil
	}
	best, worst := stats[0], stats[len(stats)-1]
	separation := best.mean - worst.mean
	if separation < 0.8 {
		return nil
	}

	doseIDs, checkInIDs := collectEvidence([]groupStats{best, worst})
	return &Pattern{
		ID:         patternID(in.User.ID, KindFoodState),
		Type:       KindFoodState,
		Title:      fmt.Sprintf("Clarity is best on %s", foodLabel(best.key)),
		Description: fmt.Sprintf(
			"Doses taken on %s average clarity %.1f, versus %.1f on %s (%d doses compared).",
			foodLabel(best.key), best.mean, worst.mean, foodLabel(worst.key), best.n+worst.n),
		Confidence:         clampConfidence(30 + separation*20 + float64(total)*1.5),
		EvidenceDoseIDs:    doseIDs,
		EvidenceCheckInIDs: checkInIDs,
		Recommendation:     fmt.Sprintf("Prefer dosing on %s and keep logging food state to confirm.", foodLabel(best.key)),
	}
}

func foodLabel(state string) string {
	switch state {
	case "empty":
		return "an empty stomach"
	case "light":
		return "a light meal"
	case "full":
		return "a full stomach"
	}
	return state
}
