package patterns

import (
	"fmt"
	"math"
)

// caffeineTimingDetector splits matched doses by whether caffeine landed
// before or after the dose and compares mean stability. Gate: 3+ samples per
// side and 0.5+ separation.
type caffeineTimingDetector struct{}

func (caffeineTimingDetector) Kind() Kind { return KindCaffeineTiming }

func (caffeineTimingDetector) Detect(in Input) *Pattern {
	groups := map[string][]groupSample{}
	for _, m := range in.Matches {
		if m.CheckIn == nil || m.Dose.CaffeineOffsetMin == nil {
			continue
		}
		key := "caffeine after dose"
		if *m.Dose.CaffeineOffsetMin < 0 {
			key = "caffeine before dose"
		}
		groups[key] = append(groups[key], groupSample{
			value:     float64(m.CheckIn.Stability),
			doseID:    m.Dose.ID,
			checkInID: m.CheckIn.ID,
		})
	}
	stats := summarizeGroups(groups, 3)
	if len(stats) < 2 {
		return nil
	}
	diff := stats[0].mean - stats[1].mean
	if math.Abs(diff) < 0.5 {
		return nil
	}

	total := stats[0].n + stats[1].n
	doseIDs, checkInIDs := collectEvidence(stats)
	return &Pattern{
		ID:    patternID(in.User.ID, KindCaffeineTiming),
		Type:  KindCaffeineTiming,
		Title: fmt.Sprintf("Stability is higher with %s", stats[0].key),
		Description: fmt.Sprintf(
			"Days with %s average stability %.1f, versus %.1f with %s (%d doses compared).",
			stats[0].key, stats[0].mean, stats[1].mean, stats[1].key, total),
		Confidence:         clampConfidence(35 + math.Abs(diff)*25 + float64(total)*2),
		EvidenceDoseIDs:    doseIDs,
		EvidenceCheckInIDs: checkInIDs,
		Recommendation:     fmt.Sprintf("Try keeping %s as your default and re-check after a few more logs.", stats[0].key),
	}
}
