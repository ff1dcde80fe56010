package engine

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
)

// ThresholdRange is the calibrated floor / sweet-spot / ceiling estimate.
// Field names are the compatibility surface consumed by the presentation
// layer.
type ThresholdRange struct {
	FloorDose   *float64 `json:"floor_dose"`
	SweetSpot   *float64 `json:"sweet_spot"`
	CeilingDose *float64 `json:"ceiling_dose"`
	Confidence  int      `json:"confidence"`
	Qualifier   string   `json:"qualifier"`
	DosesUsed   int      `json:"doses_used"`
}

// CalculateThresholdRange estimates the personal threshold range from events
// carrying a threshold feel. It returns nil below the minimum sample gate
// (insufficient data, not an error) and nil on mixed units within the
// calculation, since averaging across units would produce a dangerously wrong
// number. Output is independent of input order.
func CalculateThresholdRange(events []domain.DoseEvent, batchID uuid.UUID, p Policy) *ThresholdRange {
	usable := make([]domain.DoseEvent, 0, len(events))
	unit := ""
	for _, ev := range events {
		if batchID != uuid.Nil && ev.BatchID != batchID {
			continue
		}
		if ev.ThresholdFeel == nil || ev.Amount <= 0 {
			continue
		}
		if unit == "" {
			unit = ev.Unit
		} else if ev.Unit != unit {
			return nil
		}
		usable = append(usable, ev)
	}
	if len(usable) < p.MinUsableEvents {
		return nil
	}

	allAmounts := make([]float64, 0, len(usable))
	var subAmounts, sweetAmounts, overAmounts []float64
	for _, ev := range usable {
		allAmounts = append(allAmounts, ev.Amount)
		switch *ev.ThresholdFeel {
		case domain.FeelNothing, domain.FeelUnder:
			subAmounts = append(subAmounts, ev.Amount)
		case domain.FeelSweetSpot:
			sweetAmounts = append(sweetAmounts, ev.Amount)
		case domain.FeelOver:
			overAmounts = append(overAmounts, ev.Amount)
		}
	}
	sort.Float64s(allAmounts)
	sort.Float64s(sweetAmounts)

	out := &ThresholdRange{DosesUsed: len(usable)}

	// Floor: highest dose that produced no or sub-threshold effect.
	if len(subAmounts) > 0 {
		floor := maxOf(subAmounts)
		out.FloorDose = &floor
	} else {
		floor := quantile(allAmounts, p.FloorFallbackQ)
		out.FloorDose = &floor
	}

	// Ceiling: lowest dose felt as over threshold, else a high percentile when
	// enough data exists to make the percentile meaningful.
	if len(overAmounts) > 0 {
		ceiling := minOf(overAmounts)
		out.CeilingDose = &ceiling
	} else if len(usable) >= p.CeilingFallbackMinN {
		ceiling := quantile(allAmounts, p.CeilingFallbackQ)
		out.CeilingDose = &ceiling
	}

	// Sweet spot: mean of sweet-spot doses, else the midpoint of the range.
	if len(sweetAmounts) > 0 {
		sweet := meanOf(sweetAmounts)
		out.SweetSpot = &sweet
	} else if out.FloorDose != nil && out.CeilingDose != nil {
		sweet := (*out.FloorDose + *out.CeilingDose) / 2
		out.SweetSpot = &sweet
	}

	out.Confidence = thresholdConfidence(len(usable), sweetAmounts)
	out.Qualifier = p.Qualifier(out.Confidence)
	return out
}

// thresholdConfidence grows with sample count (up to 60 at ten events) and
// with sweet-spot consistency (up to 38 as the coefficient of variation
// approaches zero), so ten tight samples approach but never reach 100.
func thresholdConfidence(usable int, sweetAmounts []float64) int {
	base := math.Min(60, float64(usable)*6)

	consistency := 0.0
	if len(sweetAmounts) >= 2 {
		mean := meanOf(sweetAmounts)
		if mean > 0 {
			cv := stddevOf(sweetAmounts) / mean
			consistency = 38 * (1 - math.Min(1, cv/0.25))
		}
	}
	return clampInt(int(math.Round(base+consistency)), 0, 100)
}

func maxOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
