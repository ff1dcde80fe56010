package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
)

func classifiedDose(amount float64, unit string, feel domain.ThresholdFeel) domain.DoseEvent {
	f := feel
	return domain.DoseEvent{
		ID:            uuid.New(),
		Amount:        amount,
		Unit:          unit,
		TakenAt:       time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		ThresholdFeel: &f,
	}
}

func calibratedSet() []domain.DoseEvent {
	return []domain.DoseEvent{
		classifiedDose(60, "mcg", domain.FeelUnder),
		classifiedDose(70, "mcg", domain.FeelNothing),
		classifiedDose(95, "mcg", domain.FeelSweetSpot),
		classifiedDose(97, "mcg", domain.FeelSweetSpot),
		classifiedDose(99, "mcg", domain.FeelSweetSpot),
		classifiedDose(101, "mcg", domain.FeelSweetSpot),
		classifiedDose(103, "mcg", domain.FeelSweetSpot),
		classifiedDose(105, "mcg", domain.FeelSweetSpot),
		classifiedDose(130, "mcg", domain.FeelOver),
		classifiedDose(140, "mcg", domain.FeelOver),
	}
}

func TestThresholdRangeCalibratedScenario(t *testing.T) {
	p := DefaultPolicy()
	r := CalculateThresholdRange(calibratedSet(), uuid.Nil, p)
	if r == nil {
		t.Fatalf("expected a range from 10 classified doses")
	}
	if r.DosesUsed != 10 {
		t.Fatalf("expected 10 doses used, got %d", r.DosesUsed)
	}
	if r.FloorDose == nil || *r.FloorDose != 70 {
		t.Fatalf("expected floor 70 (highest sub-threshold dose), got %+v", r.FloorDose)
	}
	if r.CeilingDose == nil || *r.CeilingDose != 130 {
		t.Fatalf("expected ceiling 130 (lowest over dose), got %+v", r.CeilingDose)
	}
	if r.SweetSpot == nil || *r.SweetSpot != 100 {
		t.Fatalf("expected sweet spot 100, got %+v", r.SweetSpot)
	}
	if r.Confidence < 70 {
		t.Fatalf("expected confidence >= 70 for a tight cluster, got %d", r.Confidence)
	}
	if r.Qualifier != "Calibrated range." {
		t.Fatalf("expected calibrated qualifier, got %q", r.Qualifier)
	}
}

func TestThresholdRangeInsufficientData(t *testing.T) {
	p := DefaultPolicy()
	events := []domain.DoseEvent{
		classifiedDose(50, "mcg", domain.FeelSweetSpot),
		classifiedDose(55, "mcg", domain.FeelSweetSpot),
		classifiedDose(60, "mcg", domain.FeelOver),
		classifiedDose(45, "mcg", domain.FeelUnder),
	}
	if r := CalculateThresholdRange(events, uuid.Nil, p); r != nil {
		t.Fatalf("expected nil below 5 usable events, got %+v", r)
	}
}

func TestThresholdRangeSkipsUnclassified(t *testing.T) {
	p := DefaultPolicy()
	events := calibratedSet()[:4]
	// Unclassified rows do not count toward the gate.
	for i := 0; i < 6; i++ {
		events = append(events, domain.DoseEvent{ID: uuid.New(), Amount: 100, Unit: "mcg"})
	}
	if r := CalculateThresholdRange(events, uuid.Nil, p); r != nil {
		t.Fatalf("expected nil with only 4 classified events, got %+v", r)
	}
}

func TestThresholdRangeRejectsMixedUnits(t *testing.T) {
	p := DefaultPolicy()
	events := calibratedSet()
	events[3].Unit = "mg"
	if r := CalculateThresholdRange(events, uuid.Nil, p); r != nil {
		t.Fatalf("expected nil on mixed units, got %+v", r)
	}
}

func TestThresholdRangeOrderIndependent(t *testing.T) {
	p := DefaultPolicy()
	base := CalculateThresholdRange(calibratedSet(), uuid.Nil, p)
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffled := calibratedSet()
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := CalculateThresholdRange(shuffled, uuid.Nil, p)
		if got == nil || base == nil {
			t.Fatalf("unexpected nil range")
		}
		if *got.FloorDose != *base.FloorDose || *got.SweetSpot != *base.SweetSpot ||
			*got.CeilingDose != *base.CeilingDose || got.Confidence != base.Confidence {
			t.Fatalf("shuffle changed the result: base=%+v got=%+v", base, got)
		}
	}
}

func TestThresholdRangeConfidenceMonotoneInSamples(t *testing.T) {
	p := DefaultPolicy()
	events := calibratedSet()
	prev := CalculateThresholdRange(events, uuid.Nil, p).Confidence
	// Adding sweet-spot doses right at the cluster mean must never lower
	// confidence.
	for i := 0; i < 6; i++ {
		events = append(events, classifiedDose(100, "mcg", domain.FeelSweetSpot))
		got := CalculateThresholdRange(events, uuid.Nil, p).Confidence
		if got < prev {
			t.Fatalf("confidence dropped from %d to %d after adding a consistent sample", prev, got)
		}
		prev = got
	}
}

func TestThresholdRangeFallbacks(t *testing.T) {
	p := DefaultPolicy()
	// No explicit under/over tags: floor and ceiling come from percentiles.
	events := []domain.DoseEvent{
		classifiedDose(80, "mcg", domain.FeelSweetSpot),
		classifiedDose(90, "mcg", domain.FeelSweetSpot),
		classifiedDose(100, "mcg", domain.FeelSweetSpot),
		classifiedDose(110, "mcg", domain.FeelSweetSpot),
		classifiedDose(120, "mcg", domain.FeelSweetSpot),
		classifiedDose(95, "mcg", domain.FeelSweetSpot),
		classifiedDose(105, "mcg", domain.FeelSweetSpot),
		classifiedDose(85, "mcg", domain.FeelSweetSpot),
	}
	r := CalculateThresholdRange(events, uuid.Nil, p)
	if r == nil {
		t.Fatalf("expected a range")
	}
	if r.FloorDose == nil || r.CeilingDose == nil {
		t.Fatalf("expected percentile fallbacks for floor and ceiling, got %+v", r)
	}
	if *r.FloorDose >= *r.CeilingDose {
		t.Fatalf("floor %.1f should sit below ceiling %.1f", *r.FloorDose, *r.CeilingDose)
	}

	// Same set but below the ceiling fallback gate: ceiling stays null.
	small := events[:5]
	r = CalculateThresholdRange(small, uuid.Nil, p)
	if r == nil {
		t.Fatalf("expected a range from 5 events")
	}
	if r.CeilingDose != nil {
		t.Fatalf("expected nil ceiling without over-threshold data, got %v", *r.CeilingDose)
	}
}

func TestThresholdRangeFiltersByBatch(t *testing.T) {
	p := DefaultPolicy()
	batch := uuid.New()
	events := calibratedSet()
	for i := range events {
		events[i].BatchID = batch
	}
	other := classifiedDose(500, "mg", domain.FeelOver)
	other.BatchID = uuid.New()
	events = append(events, other)

	r := CalculateThresholdRange(events, batch, p)
	if r == nil {
		t.Fatalf("expected a range for the batch")
	}
	if r.DosesUsed != 10 {
		t.Fatalf("expected the foreign-batch dose to be excluded, used=%d", r.DosesUsed)
	}
}
