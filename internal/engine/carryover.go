package engine

import (
	"math"
	"time"

	"github.com/evelark/doseline-backend/internal/domain"
)

const (
	TierClear    = "clear"
	TierMild     = "mild"
	TierModerate = "moderate"
	TierElevated = "elevated"
)

// CarryoverResult is a pure projection of dose history at a reference time.
// Field names are the compatibility surface consumed by the presentation
// layer.
type CarryoverResult struct {
	Percentage          float64  `json:"percentage"`
	Tier                string   `json:"tier"`
	EffectiveMultiplier float64  `json:"effective_multiplier"`
	HoursToClear        *float64 `json:"hours_to_clear"`
}

// CarryoverInput bundles the dose history with the batch parameters that
// normalize it. ReferenceDose <= 0 falls back to the mean logged amount;
// HalfLifeHours <= 0 falls back to the policy default.
type CarryoverInput struct {
	Doses         []domain.DoseEvent
	ReferenceTime time.Time
	ReferenceDose float64
	HalfLifeHours float64
}

// ComputeCarryover runs the superposition decay model: every dose contributes
// an acute load proportional to amount/referenceDose that decays at
// ln2/halfLife, and the total at the reference time is the clamped sum of the
// still-relevant contributions. Doses with zero timestamps or taken after the
// reference time are filtered out, never an error.
func ComputeCarryover(in CarryoverInput, p Policy) CarryoverResult {
	halfLife := in.HalfLifeHours
	if halfLife <= 0 {
		halfLife = p.DefaultHalfLifeHours
	}
	ref := in.ReferenceDose
	if ref <= 0 {
		ref = meanAmount(in.Doses)
	}

	result := CarryoverResult{Tier: TierClear, EffectiveMultiplier: 1}
	if ref <= 0 || len(in.Doses) == 0 {
		return result
	}

	decayRate := math.Ln2 / halfLife
	horizon := p.NegligibleHalfLives * halfLife

	total := 0.0
	for _, dose := range in.Doses {
		if dose.TakenAt.IsZero() || dose.Amount <= 0 {
			continue
		}
		elapsed := in.ReferenceTime.Sub(dose.TakenAt).Hours()
		if elapsed < 0 {
			continue
		}
		if elapsed > horizon {
			// Contribution below 1/8 of its acute load; negligible.
			continue
		}
		acute := dose.Amount / ref * 100
		total += acute * math.Exp(-decayRate*elapsed)
	}

	pct := clampFloat(total, 0, 100)
	result.Percentage = pct
	result.Tier = p.Tier(pct)
	result.EffectiveMultiplier = math.Max(0, 1-pct/100)

	if pct > p.ClearThresholdPct {
		// All contributions share one decay rate, so the aggregate decays as a
		// single exponential from here and the clear time inverts in closed form.
		hours := math.Log(pct/p.ClearThresholdPct) / decayRate
		result.HoursToClear = &hours
	}
	return result
}

func meanAmount(doses []domain.DoseEvent) float64 {
	amounts := make([]float64, 0, len(doses))
	for _, d := range doses {
		if d.Amount > 0 {
			amounts = append(amounts, d.Amount)
		}
	}
	return meanOf(amounts)
}
