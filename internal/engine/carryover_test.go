package engine

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
)

func doseAt(amount float64, takenAt time.Time) domain.DoseEvent {
	return domain.DoseEvent{
		ID:      uuid.New(),
		Amount:  amount,
		Unit:    "mcg",
		TakenAt: takenAt,
	}
}

func TestComputeCarryoverSingleDoseHalfLife(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	res := ComputeCarryover(CarryoverInput{
		Doses:         []domain.DoseEvent{doseAt(100, start)},
		ReferenceTime: start.Add(288 * time.Hour),
		ReferenceDose: 100,
		HalfLifeHours: 288,
	}, DefaultPolicy())

	if math.Abs(res.Percentage-50) > 0.5 {
		t.Fatalf("expected ~50%% after one half-life, got %.2f", res.Percentage)
	}
	if res.Tier != TierModerate {
		t.Fatalf("expected moderate tier at 50%%, got %q", res.Tier)
	}
	if res.HoursToClear == nil {
		t.Fatalf("expected hours_to_clear to be set at 50%%")
	}
}

func TestComputeCarryoverMonotoneDecay(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	doses := []domain.DoseEvent{
		doseAt(100, start),
		doseAt(80, start.Add(48*time.Hour)),
		doseAt(120, start.Add(96*time.Hour)),
	}
	p := DefaultPolicy()

	prev := math.MaxFloat64
	for h := 100; h <= 2000; h += 50 {
		res := ComputeCarryover(CarryoverInput{
			Doses:         doses,
			ReferenceTime: start.Add(time.Duration(h) * time.Hour),
			ReferenceDose: 100,
			HalfLifeHours: 288,
		}, p)
		if res.Percentage > prev {
			t.Fatalf("carryover increased from %.3f to %.3f at +%dh", prev, res.Percentage, h)
		}
		prev = res.Percentage
	}
	if prev > 5 {
		t.Fatalf("expected near-zero carryover far out, got %.3f", prev)
	}
}

func TestComputeCarryoverMultiplierIdentity(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := DefaultPolicy()
	for _, hours := range []int{0, 24, 72, 144, 288, 600} {
		res := ComputeCarryover(CarryoverInput{
			Doses:         []domain.DoseEvent{doseAt(150, start), doseAt(90, start.Add(24*time.Hour))},
			ReferenceTime: start.Add(time.Duration(hours) * time.Hour),
			ReferenceDose: 100,
			HalfLifeHours: 288,
		}, p)
		if math.Abs(res.EffectiveMultiplier+res.Percentage/100-1) > 1e-9 {
			t.Fatalf("multiplier identity broken at +%dh: mult=%.6f pct=%.6f", hours, res.EffectiveMultiplier, res.Percentage)
		}
	}
}

func TestComputeCarryoverStackedDosesSuperpose(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := DefaultPolicy()
	single := ComputeCarryover(CarryoverInput{
		Doses:         []domain.DoseEvent{doseAt(50, start)},
		ReferenceTime: start.Add(24 * time.Hour),
		ReferenceDose: 100,
		HalfLifeHours: 288,
	}, p)
	stacked := ComputeCarryover(CarryoverInput{
		Doses:         []domain.DoseEvent{doseAt(50, start), doseAt(50, start.Add(12*time.Hour))},
		ReferenceTime: start.Add(24 * time.Hour),
		ReferenceDose: 100,
		HalfLifeHours: 288,
	}, p)
	if stacked.Percentage <= single.Percentage {
		t.Fatalf("closely spaced doses must stack: single=%.2f stacked=%.2f", single.Percentage, stacked.Percentage)
	}
}

func TestComputeCarryoverIgnoresMalformedAndFutureDoses(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	res := ComputeCarryover(CarryoverInput{
		Doses: []domain.DoseEvent{
			{ID: uuid.New(), Amount: 100},                 // zero timestamp
			doseAt(100, start.Add(500 * time.Hour)),       // after reference time
			{ID: uuid.New(), Amount: -5, TakenAt: start},  // bad amount
		},
		ReferenceTime: start.Add(time.Hour),
		ReferenceDose: 100,
		HalfLifeHours: 288,
	}, DefaultPolicy())
	if res.Percentage != 0 {
		t.Fatalf("expected 0%% from malformed history, got %.2f", res.Percentage)
	}
	if res.Tier != TierClear {
		t.Fatalf("expected clear tier, got %q", res.Tier)
	}
	if res.HoursToClear != nil {
		t.Fatalf("expected nil hours_to_clear when already clear")
	}
}

func TestComputeCarryoverClampsAt100(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	res := ComputeCarryover(CarryoverInput{
		Doses: []domain.DoseEvent{
			doseAt(300, start),
			doseAt(300, start.Add(time.Hour)),
		},
		ReferenceTime: start.Add(2 * time.Hour),
		ReferenceDose: 100,
		HalfLifeHours: 288,
	}, DefaultPolicy())
	if res.Percentage != 100 {
		t.Fatalf("expected clamp at 100, got %.2f", res.Percentage)
	}
	if res.EffectiveMultiplier != 0 {
		t.Fatalf("expected multiplier 0 at full load, got %.3f", res.EffectiveMultiplier)
	}
	if res.Tier != TierElevated {
		t.Fatalf("expected elevated tier, got %q", res.Tier)
	}
}
