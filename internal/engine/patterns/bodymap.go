package patterns

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// bodyMapDetector surfaces the body region most often reported across
// check-ins. Gate: 5+ check-ins carrying body data and 40%+ incidence for
// the top region.
type bodyMapDetector struct{}

func (bodyMapDetector) Kind() Kind { return KindBodyMap }

func (bodyMapDetector) Detect(in Input) *Pattern {
	byRegion := map[string][]uuid.UUID{}
	withBody := 0
	for _, ci := range in.CheckIns {
		regions := ci.BodyRegions()
		if len(regions) == 0 {
			continue
		}
		withBody++
		seen := map[string]bool{}
		for _, r := range regions {
			if seen[r] {
				continue
			}
			seen[r] = true
			byRegion[r] = append(byRegion[r], ci.ID)
		}
	}
	if withBody < 5 {
		return nil
	}

	regions := make([]string, 0, len(byRegion))
	for r := range byRegion {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool {
		if len(byRegion[regions[i]]) != len(byRegion[regions[j]]) {
			return len(byRegion[regions[i]]) > len(byRegion[regions[j]])
		}
		return regions[i] < regions[j]
	})

	top := regions[0]
	rate := float64(len(byRegion[top])) / float64(withBody)
	if rate < 0.40 {
		return nil
	}

	evidence := append([]uuid.UUID{}, byRegion[top]...)
	sortUUIDs(evidence)
	return &Pattern{
		ID:    patternID(in.User.ID, KindBodyMap),
		Type:  KindBodyMap,
		Title: fmt.Sprintf("Your body keeps flagging the %s", top),
		Description: fmt.Sprintf(
			"%.0f%% of your body check-ins mention the %s (%d of %d).",
			rate*100, top, len(byRegion[top]), withBody),
		Confidence:         clampConfidence(25 + rate*80 + float64(withBody)),
		EvidenceCheckInIDs: evidence,
		Recommendation:     fmt.Sprintf("Recurring %s sensations are worth tracking against dose size; mention them to a clinician if they persist.", top),
	}
}
