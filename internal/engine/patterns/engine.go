package patterns

import (
	"sort"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
)

// Detect matches doses with check-ins once, runs every applicable detector
// over the shared pairing, drops anything under the confidence floor and
// returns at most PatternCap patterns sorted by confidence. A panicking
// detector is swallowed so one bad detector can never suppress the rest.
func Detect(user domain.User, doses []domain.DoseEvent, checkIns []domain.CheckIn, p engine.Policy) []Pattern {
	in := Input{
		User:     user,
		Doses:    doses,
		CheckIns: checkIns,
		Matches:  MatchDosesWithCheckIns(doses, checkIns, p.MatchWindow),
		Policy:   p,
	}

	found := make([]Pattern, 0, p.PatternCap)
	for _, d := range registry(user, checkIns) {
		if pat := runDetector(d, in); pat != nil && pat.Confidence >= p.PatternFloor {
			found = append(found, *pat)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Confidence != found[j].Confidence {
			return found[i].Confidence > found[j].Confidence
		}
		return found[i].Type < found[j].Type
	})
	if len(found) > p.PatternCap {
		found = found[:p.PatternCap]
	}
	return found
}

// registry lists the detector strategies to run. Adding a ninth detector is
// a pure-addition change here. The cycle detector only applies to users who
// opted into cycle tracking; the body-map detector only when body data
// exists.
func registry(user domain.User, checkIns []domain.CheckIn) []Detector {
	detectors := []Detector{
		foodStateDetector{},
		weekdayDetector{},
		sleepQualityDetector{},
		environmentDetector{},
		caffeineTimingDetector{},
		antiPatternDetector{},
	}
	if user.CycleTrackingEnabled {
		detectors = append(detectors, cyclePhaseDetector{})
	}
	for _, ci := range checkIns {
		if len(ci.BodyMap) > 0 {
			detectors = append(detectors, bodyMapDetector{})
			break
		}
	}
	return detectors
}

func runDetector(d Detector, in Input) (out *Pattern) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	return d.Detect(in)
}
