package patterns

import (
	"sort"

	"github.com/google/uuid"
)

// groupSample is one matched observation contributing to a grouped
// comparison.
type groupSample struct {
	value     float64
	doseID    uuid.UUID
	checkInID uuid.UUID
}

type groupStats struct {
	key        string
	mean       float64
	n          int
	doseIDs    []uuid.UUID
	checkInIDs []uuid.UUID
}

// summarizeGroups folds raw samples into per-group means, drops groups below
// minPerGroup and returns the rest sorted by mean descending (key ascending
// on ties, keeping output deterministic).
func summarizeGroups(groups map[string][]groupSample, minPerGroup int) []groupStats {
	out := make([]groupStats, 0, len(groups))
	for key, samples := range groups {
		if len(samples) < minPerGroup {
			continue
		}
		stats := groupStats{key: key, n: len(samples)}
		sum := 0.0
		for _, s := range samples {
			sum += s.value
			stats.doseIDs = append(stats.doseIDs, s.doseID)
			if s.checkInID != uuid.Nil {
				stats.checkInIDs = append(stats.checkInIDs, s.checkInID)
			}
		}
		stats.mean = sum / float64(stats.n)
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].mean != out[j].mean {
			return out[i].mean > out[j].mean
		}
		return out[i].key < out[j].key
	})
	return out
}

func collectEvidence(groups []groupStats) (doseIDs, checkInIDs []uuid.UUID) {
	for _, g := range groups {
		doseIDs = append(doseIDs, g.doseIDs...)
		checkInIDs = append(checkInIDs, g.checkInIDs...)
	}
	sortUUIDs(doseIDs)
	sortUUIDs(checkInIDs)
	return doseIDs, checkInIDs
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
