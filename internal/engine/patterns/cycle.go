package patterns

import "fmt"

// cyclePhaseDetector groups matched doses by menstrual-cycle window and
// compares the composite signal mean. It only runs for users who opted into
// cycle tracking (the engine skips registering it otherwise) and gates on 3+
// samples in 2+ phases with 0.5+ separation.
type cyclePhaseDetector struct{}

func (cyclePhaseDetector) Kind() Kind { return KindCyclePhase }

func (cyclePhaseDetector) Detect(in Input) *Pattern {
	if !in.User.CycleTrackingEnabled {
		return nil
	}
	groups := map[string][]groupSample{}
	for _, m := range in.Matches {
		if m.CheckIn == nil || m.Dose.CycleDay == nil {
			continue
		}
		phase := cyclePhase(*m.Dose.CycleDay)
		composite := (float64(m.CheckIn.Energy) + float64(m.CheckIn.Clarity) + float64(m.CheckIn.Stability)) / 3
		groups[phase] = append(groups[phase], groupSample{
			value:     composite,
			doseID:    m.Dose.ID,
			checkInID: m.CheckIn.ID,
		})
	}
	stats := summarizeGroups(groups, 3)
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
		ID:    patternID(in.User.ID, KindCyclePhase),
		Type:  KindCyclePhase,
		Title: fmt.Sprintf("Doses land better in your %s window", best.key),
		Description: fmt.Sprintf(
			"Doses during the %s window average %.1f across energy, clarity and stability, versus %.1f during the %s window.",
			best.key, best.mean, worst.mean, worst.key),
		Confidence:         clampConfidence(30 + separation*25 + float64(total)*2),
		EvidenceDoseIDs:    doseIDs,
		EvidenceCheckInIDs: checkInIDs,
		Recommendation:     fmt.Sprintf("Consider weighting dose days toward your %s window and logging through a full cycle to confirm.", best.key),
	}
}

func cyclePhase(day int) string {
	switch {
	case day <= 11:
		return "follicular"
	case day <= 16:
		return "ovulation"
	default:
		return "luteal"
	}
}
