package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNormalizeDoseRowsSkipsMalformed(t *testing.T) {
	p := DefaultPolicy()
	good := uuid.New().String()
	rows := []RawDoseRow{
		{ID: good, Amount: 100, Unit: "mcg", Timestamp: "2026-03-01T08:00:00Z"},
		{ID: "not-a-uuid", Amount: 100, Unit: "mcg", Timestamp: "2026-03-01T08:00:00Z"},
		{ID: uuid.New().String(), Amount: 0, Unit: "mcg", Timestamp: "2026-03-01T08:00:00Z"},
		{ID: uuid.New().String(), Amount: 100, Unit: "", Timestamp: "2026-03-01T08:00:00Z"},
		{ID: uuid.New().String(), Amount: 100, Unit: "mcg", Timestamp: "yesterday-ish"},
	}
	events := NormalizeDoseRows(rows, p)
	if len(events) != 1 {
		t.Fatalf("expected 1 surviving row, got %d", len(events))
	}
	if events[0].ID.String() != good {
		t.Fatalf("wrong row survived: %s", events[0].ID)
	}
}

func TestNormalizeDoseRowsDropsOutOfRangeOptionals(t *testing.T) {
	p := DefaultPolicy()
	rows := []RawDoseRow{{
		ID:           uuid.New().String(),
		Amount:       100,
		Unit:         "MCG",
		Timestamp:    "2026-03-01T08:00:00Z",
		Signal:       intPtr(14),
		Texture:      intPtr(5),
		SleepQuality: intPtr(9),
		FoodState:    "stuffed",
	}}
	events := NormalizeDoseRows(rows, p)
	if len(events) != 1 {
		t.Fatalf("expected the row to survive with optionals dropped, got %d rows", len(events))
	}
	ev := events[0]
	if ev.Unit != "mcg" {
		t.Fatalf("expected unit lowercased, got %q", ev.Unit)
	}
	if ev.Signal != nil || ev.SleepQuality != nil || ev.FoodState != nil {
		t.Fatalf("expected out-of-range optionals dropped: %+v", ev)
	}
	if ev.Texture == nil || *ev.Texture != 5 {
		t.Fatalf("expected valid texture kept, got %+v", ev.Texture)
	}
	if ev.DayClassification != domain.DayUnclassified {
		t.Fatalf("incomplete scores must stay unclassified, got %q", ev.DayClassification)
	}
}

func TestClassifyDayTable(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name                          string
		signal, texture, interference *int
		want                          domain.DayClassification
	}{
		{"missing scores", nil, intPtr(5), intPtr(1), domain.DayUnclassified},
		{"strong clean day", intPtr(7), intPtr(5), intPtr(1), domain.DayGreen},
		{"green boundary", intPtr(6), intPtr(4), intPtr(2), domain.DayGreen},
		{"interference dominates", intPtr(8), intPtr(5), intPtr(6), domain.DayRed},
		{"no signal", intPtr(2), intPtr(3), intPtr(1), domain.DayRed},
		{"middling day", intPtr(5), intPtr(5), intPtr(3), domain.DayYellow},
		{"good signal but noisy", intPtr(7), intPtr(4), intPtr(4), domain.DayYellow},
	}
	for _, tc := range cases {
		if got := ClassifyDay(tc.signal, tc.texture, tc.interference, p); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestNormalizeCheckInRows(t *testing.T) {
	doseID := uuid.New().String()
	rows := []RawCheckInRow{
		{ID: uuid.New().String(), DoseEventID: doseID, Timestamp: "2026-03-01T12:00:00Z", Energy: intPtr(4), Clarity: intPtr(5), Stability: intPtr(3), BodyMap: []string{"jaw", "shoulders"}},
		{ID: uuid.New().String(), Timestamp: "2026-03-01T13:00:00Z", Energy: intPtr(0), Clarity: intPtr(5), Stability: intPtr(3)},
		{ID: uuid.New().String(), Timestamp: "", Energy: intPtr(3), Clarity: intPtr(3), Stability: intPtr(3)},
	}
	checkIns := NormalizeCheckInRows(rows)
	if len(checkIns) != 1 {
		t.Fatalf("expected 1 surviving check-in, got %d", len(checkIns))
	}
	ci := checkIns[0]
	if ci.DoseEventID == nil || ci.DoseEventID.String() != doseID {
		t.Fatalf("expected dose link preserved, got %+v", ci.DoseEventID)
	}
	regions := ci.BodyRegions()
	if len(regions) != 2 || regions[0] != "jaw" {
		t.Fatalf("expected body regions round-tripped, got %v", regions)
	}
}
