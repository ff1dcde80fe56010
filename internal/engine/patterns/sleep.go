package patterns

import (
	"fmt"
	"math"
)

// sleepQualityDetector compares mean post-dose clarity between well-slept
// (sleep >= 4) and poorly-slept (sleep <= 2) doses. Gate: 3+ samples on each
// side and 0.5+ separation.
type sleepQualityDetector struct{}

func (sleepQualityDetector) Kind() Kind { return KindSleepQuality }

func (sleepQualityDetector) Detect(in Input) *Pattern {
	groups := map[string][]groupSample{}
	for _, m := range in.Matches {
		if m.CheckIn == nil || m.Dose.SleepQuality == nil {
			continue
		}
		var key string
		switch {
		case *m.Dose.SleepQuality >= 4:
			key = "rested"
		case *m.Dose.SleepQuality <= 2:
			key = "short-slept"
		default:
			continue
		}
		groups[key] = append(groups[key], groupSample{
			value:     float64(m.CheckIn.Clarity),
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
		ID:    patternID(in.User.ID, KindSleepQuality),
		Type:  KindSleepQuality,
		Title: fmt.Sprintf("Clarity follows your sleep: best when %s", stats[0].key),
		Description: fmt.Sprintf(
			"After %s nights your clarity averages %.1f, versus %.1f after %s nights (%d doses compared).",
			stats[0].key, stats[0].mean, stats[1].mean, stats[1].key, total),
		Confidence:         clampConfidence(35 + math.Abs(diff)*25 + float64(total)*2),
		EvidenceDoseIDs:    doseIDs,
		EvidenceCheckInIDs: checkInIDs,
		Recommendation:     "Sleep looks like a bigger lever than dose size on these days; protect the prior night before adjusting amounts.",
	}
}
