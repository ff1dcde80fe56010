package patterns

import "fmt"

// environmentDetector compares the composite signal mean (energy, clarity,
// stability) across environment tags. Gate: 2+ samples per tag, 2+ tags,
// 0.5+ separation.
type environmentDetector struct{}

func (environmentDetector) Kind() Kind { return KindEnvironment }

func (environmentDetector) Detect(in Input) *Pattern {
	groups := map[string][]groupSample{}
	for _, m := range in.Matches {
		if m.CheckIn == nil || m.Dose.Environment == nil {
			continue
		}
		composite := (float64(m.CheckIn.Energy) + float64(m.CheckIn.Clarity) + float64(m.CheckIn.Stability)) / 3
		groups[*m.Dose.Environment] = append(groups[*m.Dose.Environment], groupSample{
			value:     composite,
			doseID:    m.Dose.ID,
			checkInID: m.CheckIn.ID,
		})
	}
	stats := summarizeGroups(groups, 2)
	if len(stats) < 2 {
		return nil
	}
	best, worst := stats[0], stats[len(stats)-1]
	separation := best.mean - worst.mean
	if separation < 0.5 {
		return nil
	}

	total := 0
	for _, g := range stats {
		total += g.n
	}
	doseIDs, checkInIDs := collectEvidence([]groupStats{best, worst})
	return &Pattern{
		ID:    patternID(in.User.ID, KindEnvironment),
		Type:  KindEnvironment,
		Title: fmt.Sprintf("You respond best in %q surroundings", best.key),
		Description: fmt.Sprintf(
			"Doses taken in %q average %.1f across energy, clarity and stability, versus %.1f in %q.",
			best.key, best.mean, worst.mean, worst.key),
		Confidence:         clampConfidence(30 + separation*25 + float64(total)*2),
		EvidenceDoseIDs:    doseIDs,
		EvidenceCheckInIDs: checkInIDs,
		Recommendation:     fmt.Sprintf("When a day matters, dose in %q surroundings if you can.", best.key),
	}
}
