package patterns

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// weekdayDetector flags schedules where one or two weekdays carry a
// disproportionate share of all doses.
type weekdayDetector struct{}

func (weekdayDetector) Kind() Kind { return KindWeekday }

func (weekdayDetector) Detect(in Input) *Pattern {
	if len(in.Doses) < 6 {
		return nil
	}
	loc := userLocation(in)

	counts := map[time.Weekday][]uuid.UUID{}
	for _, d := range in.Doses {
		day := d.TakenAt.In(loc).Weekday()
		counts[day] = append(counts[day], d.ID)
	}

	type dayCount struct {
		day time.Weekday
		ids []uuid.UUID
	}
	ranked := make([]dayCount, 0, len(counts))
	for day, ids := range counts {
		ranked = append(ranked, dayCount{day: day, ids: ids})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if len(ranked[i].ids) != len(ranked[j].ids) {
			return len(ranked[i].ids) > len(ranked[j].ids)
		}
		return ranked[i].day < ranked[j].day
	})

	total := float64(len(in.Doses))
	topShare := float64(len(ranked[0].ids)) / total

	var days []time.Weekday
	var evidence []uuid.UUID
	var share float64
	switch {
	case topShare > 0.30:
		days = []time.Weekday{ranked[0].day}
		evidence = ranked[0].ids
		share = topShare
	case len(ranked) > 1 && (float64(len(ranked[0].ids))+float64(len(ranked[1].ids)))/total > 0.50:
		days = []time.Weekday{ranked[0].day, ranked[1].day}
		evidence = append(append([]uuid.UUID{}, ranked[0].ids...), ranked[1].ids...)
		share = (float64(len(ranked[0].ids)) + float64(len(ranked[1].ids))) / total
	default:
		return nil
	}
	sortUUIDs(evidence)

	label := days[0].String()
	if len(days) == 2 {
		label = days[0].String() + " and " + days[1].String()
	}
	return &Pattern{
		ID:    patternID(in.User.ID, KindWeekday),
		Type:  KindWeekday,
		Title: fmt.Sprintf("Doses cluster on %s", label),
		Description: fmt.Sprintf(
			"%.0f%% of your logged doses fall on %s (%d of %d doses).",
			share*100, label, len(evidence), len(in.Doses)),
		Confidence:      clampConfidence(40 + (share-0.30)*100 + total*0.5),
		EvidenceDoseIDs: evidence,
		Recommendation:  "A fixed weekly rhythm can mask dose effects; consider varying the dosing day occasionally.",
	}
}

func userLocation(in Input) *time.Location {
	if in.User.Timezone != "" {
		if loc, err := time.LoadLocation(in.User.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}
