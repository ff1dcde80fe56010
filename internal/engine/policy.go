package engine

import (
	"time"

	"github.com/evelark/doseline-backend/internal/platform/envutil"
)

// Policy is the single configuration table for every UI-visible cut point the
// engines apply: day-classification bounds, confidence band edges, carryover
// tier bands and the pattern gates. Keeping them in one place keeps them
// testable and lets deployments tune them without touching engine code.
type Policy struct {
	// Day classification (0-10 post-dose scores).
	GreenSignalMin      int
	GreenInterferenceMax int
	RedInterferenceMin  int
	RedSignalMax        int

	// Threshold range calculator.
	MinUsableEvents     int
	FloorFallbackQ      float64
	CeilingFallbackQ    float64
	CeilingFallbackMinN int

	// Confidence bands. Band edges and qualifier strings are consumed verbatim
	// by the presentation layer and must not drift.
	BandPreliminary int
	BandWorking     int
	BandCalibrated  int

	QualifierNeedData    string
	QualifierPreliminary string
	QualifierWorking     string
	QualifierCalibrated  string

	// Carryover.
	DefaultHalfLifeHours float64
	ClearThresholdPct    float64
	NegligibleHalfLives  float64
	TierMildMin          float64
	TierModerateMin      float64
	TierElevatedMin      float64

	// Pattern detection.
	MatchWindow     time.Duration
	PatternFloor    int
	PatternCap      int
	EveningHour     int
	CaffeineNearMin int
}

func DefaultPolicy() Policy {
	return Policy{
		GreenSignalMin:      6,
		GreenInterferenceMax: 2,
		RedInterferenceMin:  6,
		RedSignalMax:        2,

		MinUsableEvents:     5,
		FloorFallbackQ:      0.10,
		CeilingFallbackQ:    0.90,
		CeilingFallbackMinN: 8,

		BandPreliminary: 30,
		BandWorking:     50,
		BandCalibrated:  70,

		QualifierNeedData:    "Need more data.",
		QualifierPreliminary: "Preliminary range. Keep logging.",
		QualifierWorking:     "Working range. Refine with more doses.",
		QualifierCalibrated:  "Calibrated range.",

		DefaultHalfLifeHours: 288,
		ClearThresholdPct:    5,
		NegligibleHalfLives:  3,
		TierMildMin:          10,
		TierModerateMin:      35,
		TierElevatedMin:      65,

		MatchWindow:     8 * time.Hour,
		PatternFloor:    40,
		PatternCap:      5,
		EveningHour:     17,
		CaffeineNearMin: 120,
	}
}

// LoadPolicyFromEnv starts from the defaults and applies environment
// overrides. Qualifier strings are intentionally not overridable; they are a
// fixed contract with the UI layer.
func LoadPolicyFromEnv() Policy {
	p := DefaultPolicy()

	p.GreenSignalMin = envutil.Int("ENGINE_GREEN_SIGNAL_MIN", p.GreenSignalMin)
	p.GreenInterferenceMax = envutil.Int("ENGINE_GREEN_INTERFERENCE_MAX", p.GreenInterferenceMax)
	p.RedInterferenceMin = envutil.Int("ENGINE_RED_INTERFERENCE_MIN", p.RedInterferenceMin)
	p.RedSignalMax = envutil.Int("ENGINE_RED_SIGNAL_MAX", p.RedSignalMax)

	p.MinUsableEvents = envutil.Int("ENGINE_MIN_USABLE_EVENTS", p.MinUsableEvents)
	p.CeilingFallbackMinN = envutil.Int("ENGINE_CEILING_FALLBACK_MIN_N", p.CeilingFallbackMinN)

	p.DefaultHalfLifeHours = envutil.Float("ENGINE_DEFAULT_HALF_LIFE_HOURS", p.DefaultHalfLifeHours)
	p.ClearThresholdPct = envutil.Float("ENGINE_CLEAR_THRESHOLD_PCT", p.ClearThresholdPct)
	p.NegligibleHalfLives = envutil.Float("ENGINE_NEGLIGIBLE_HALF_LIVES", p.NegligibleHalfLives)
	p.TierMildMin = envutil.Float("ENGINE_TIER_MILD_MIN", p.TierMildMin)
	p.TierModerateMin = envutil.Float("ENGINE_TIER_MODERATE_MIN", p.TierModerateMin)
	p.TierElevatedMin = envutil.Float("ENGINE_TIER_ELEVATED_MIN", p.TierElevatedMin)

	p.MatchWindow = time.Duration(envutil.Int("ENGINE_MATCH_WINDOW_HOURS", int(p.MatchWindow/time.Hour))) * time.Hour
	p.PatternFloor = envutil.Int("ENGINE_PATTERN_FLOOR", p.PatternFloor)
	p.PatternCap = envutil.Int("ENGINE_PATTERN_CAP", p.PatternCap)
	p.EveningHour = envutil.Int("ENGINE_EVENING_HOUR", p.EveningHour)
	p.CaffeineNearMin = envutil.Int("ENGINE_CAFFEINE_NEAR_MIN", p.CaffeineNearMin)

	return p
}

// Qualifier maps a confidence score onto its display band.
func (p Policy) Qualifier(confidence int) string {
	switch {
	case confidence >= p.BandCalibrated:
		return p.QualifierCalibrated
	case confidence >= p.BandWorking:
		return p.QualifierWorking
	case confidence >= p.BandPreliminary:
		return p.QualifierPreliminary
	default:
		return p.QualifierNeedData
	}
}

// Tier buckets a carryover percentage into its display band.
func (p Policy) Tier(percentage float64) string {
	switch {
	case percentage >= p.TierElevatedMin:
		return TierElevated
	case percentage >= p.TierModerateMin:
		return TierModerate
	case percentage >= p.TierMildMin:
		return TierMild
	default:
		return TierClear
	}
}
