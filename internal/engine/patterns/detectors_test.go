package patterns

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
)

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func testUser() domain.User {
	return domain.User{ID: uuid.MustParse("0b9fbe9e-9f1c-4f0a-8f6d-111111111111"), Timezone: "UTC"}
}

// foodHistory builds ten empty-stomach doses averaging 4.5 clarity and ten
// full-stomach doses at 2.0.
func foodHistory() ([]domain.DoseEvent, []domain.CheckIn) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var doses []domain.DoseEvent
	var checkIns []domain.CheckIn
	add := func(day int, food string, clarity int) {
		dose := domain.DoseEvent{
			ID:        uuid.New(),
			Amount:    100,
			Unit:      "mcg",
			TakenAt:   base.AddDate(0, 0, day),
			FoodState: strPtr(food),
		}
		ci := domain.CheckIn{
			ID:          uuid.New(),
			DoseEventID: &dose.ID,
			RecordedAt:  dose.TakenAt.Add(4 * time.Hour),
			Energy:      3,
			Clarity:     clarity,
			Stability:   3,
		}
		doses = append(doses, dose)
		checkIns = append(checkIns, ci)
	}
	for i := 0; i < 10; i++ {
		clarity := 4
		if i%2 == 0 {
			clarity = 5
		}
		add(i, domain.FoodEmpty, clarity)
	}
	for i := 0; i < 10; i++ {
		add(20+i, domain.FoodFull, 2)
	}
	return doses, checkIns
}

func TestFoodStateDetectorNamesEmptyStomach(t *testing.T) {
	doses, checkIns := foodHistory()
	p := engine.DefaultPolicy()
	in := Input{
		User:    testUser(),
		Doses:   doses,
		Matches: MatchDosesWithCheckIns(doses, checkIns, p.MatchWindow),
		Policy:  p,
	}
	pat := foodStateDetector{}.Detect(in)
	if pat == nil {
		t.Fatalf("expected a food-state pattern")
	}
	if pat.Confidence < 50 {
		t.Fatalf("expected confidence >= 50, got %d", pat.Confidence)
	}
	if !strings.Contains(pat.Title+pat.Description, "empty stomach") {
		t.Fatalf("pattern must name the empty stomach: %q / %q", pat.Title, pat.Description)
	}
	if len(pat.EvidenceDoseIDs) == 0 || len(pat.EvidenceCheckInIDs) == 0 {
		t.Fatalf("expected evidence ids on the pattern")
	}
}

func TestFoodStateDetectorGates(t *testing.T) {
	doses, checkIns := foodHistory()
	p := engine.DefaultPolicy()

	// Too few samples.
	in := Input{User: testUser(), Doses: doses[:4], Matches: MatchDosesWithCheckIns(doses[:4], checkIns[:4], p.MatchWindow), Policy: p}
	if pat := (foodStateDetector{}).Detect(in); pat != nil {
		t.Fatalf("expected nil below the sample gate, got %+v", pat)
	}

	// Plenty of samples but no separation.
	flat := make([]domain.CheckIn, len(checkIns))
	copy(flat, checkIns)
	for i := range flat {
		flat[i].Clarity = 3
	}
	in = Input{User: testUser(), Doses: doses, Matches: MatchDosesWithCheckIns(doses, flat, p.MatchWindow), Policy: p}
	if pat := (foodStateDetector{}).Detect(in); pat != nil {
		t.Fatalf("expected nil below the separation gate, got %+v", pat)
	}
}

func TestSleepQualityDetector(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var doses []domain.DoseEvent
	var checkIns []domain.CheckIn
	add := func(day, sleep, clarity int) {
		dose := domain.DoseEvent{ID: uuid.New(), Amount: 100, Unit: "mcg", TakenAt: base.AddDate(0, 0, day), SleepQuality: intPtr(sleep)}
		ci := domain.CheckIn{ID: uuid.New(), DoseEventID: &dose.ID, RecordedAt: dose.TakenAt.Add(3 * time.Hour), Energy: 3, Clarity: clarity, Stability: 3}
		doses = append(doses, dose)
		checkIns = append(checkIns, ci)
	}
	for i := 0; i < 4; i++ {
		add(i, 5, 4)
	}
	for i := 0; i < 4; i++ {
		add(10+i, 1, 2)
	}
	p := engine.DefaultPolicy()
	in := Input{User: testUser(), Doses: doses, Matches: MatchDosesWithCheckIns(doses, checkIns, p.MatchWindow), Policy: p}
	pat := sleepQualityDetector{}.Detect(in)
	if pat == nil {
		t.Fatalf("expected a sleep pattern from a 2-point clarity gap")
	}
	if pat.Confidence < 40 {
		t.Fatalf("emitted pattern below the floor: %d", pat.Confidence)
	}
}

func TestWeekdayDetectorFlagsClustering(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) // a Monday
	var doses []domain.DoseEvent
	for week := 0; week < 5; week++ {
		doses = append(doses, testDose(base.AddDate(0, 0, week*7)))
	}
	doses = append(doses,
		testDose(base.AddDate(0, 0, 2)),
		testDose(base.AddDate(0, 0, 10)),
	)
	p := engine.DefaultPolicy()
	in := Input{User: testUser(), Doses: doses, Policy: p}
	pat := weekdayDetector{}.Detect(in)
	if pat == nil {
		t.Fatalf("expected a weekday pattern when Mondays carry 5 of 7 doses")
	}
	if !strings.Contains(pat.Title, "Monday") {
		t.Fatalf("expected Monday named, got %q", pat.Title)
	}
}

func TestCycleDetectorRequiresOptIn(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var doses []domain.DoseEvent
	var checkIns []domain.CheckIn
	add := func(day, cycleDay, clarity int) {
		dose := domain.DoseEvent{ID: uuid.New(), Amount: 100, Unit: "mcg", TakenAt: base.AddDate(0, 0, day), CycleDay: intPtr(cycleDay)}
		ci := domain.CheckIn{ID: uuid.New(), DoseEventID: &dose.ID, RecordedAt: dose.TakenAt.Add(2 * time.Hour), Energy: clarity, Clarity: clarity, Stability: clarity}
		doses = append(doses, dose)
		checkIns = append(checkIns, ci)
	}
	for i := 0; i < 4; i++ {
		add(i, 5+i, 5)
	}
	for i := 0; i < 4; i++ {
		add(14+i, 18+i, 2)
	}
	p := engine.DefaultPolicy()
	user := testUser()
	in := Input{User: user, Doses: doses, Matches: MatchDosesWithCheckIns(doses, checkIns, p.MatchWindow), Policy: p}
	if pat := (cyclePhaseDetector{}).Detect(in); pat != nil {
		t.Fatalf("cycle detector must not run without opt-in")
	}

	user.CycleTrackingEnabled = true
	in.User = user
	if pat := (cyclePhaseDetector{}).Detect(in); pat == nil {
		t.Fatalf("expected a cycle pattern once opted in")
	}
}

func TestAntiPatternDetector(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var doses []domain.DoseEvent
	var checkIns []domain.CheckIn
	for i := 0; i < 4; i++ {
		dose := domain.DoseEvent{
			ID:           uuid.New(),
			Amount:       100,
			Unit:         "mcg",
			TakenAt:      base.AddDate(0, 0, i),
			SleepQuality: intPtr(1),
		}
		ci := domain.CheckIn{ID: uuid.New(), DoseEventID: &dose.ID, RecordedAt: dose.TakenAt.Add(4 * time.Hour), Energy: 2, Clarity: 2, Stability: 1}
		doses = append(doses, dose)
		checkIns = append(checkIns, ci)
	}
	p := engine.DefaultPolicy()
	in := Input{User: testUser(), Doses: doses, Matches: MatchDosesWithCheckIns(doses, checkIns, p.MatchWindow), Policy: p}
	pat := antiPatternDetector{}.Detect(in)
	if pat == nil {
		t.Fatalf("expected an anti-pattern naming poor sleep")
	}
	if !strings.Contains(pat.Description, factorPoorSleep) {
		t.Fatalf("expected %q named, got %q", factorPoorSleep, pat.Description)
	}
}

func TestBodyMapDetector(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var checkIns []domain.CheckIn
	for i := 0; i < 6; i++ {
		ci := testCheckIn(base.AddDate(0, 0, i), 3, 3, 3)
		if i < 4 {
			ci.BodyMap = datatypes.JSON(`["jaw","neck"]`)
		} else {
			ci.BodyMap = datatypes.JSON(`["feet"]`)
		}
		checkIns = append(checkIns, ci)
	}
	p := engine.DefaultPolicy()
	in := Input{User: testUser(), CheckIns: checkIns, Policy: p}
	pat := bodyMapDetector{}.Detect(in)
	if pat == nil {
		t.Fatalf("expected a body-map pattern at 4/6 incidence")
	}
	if !strings.Contains(pat.Title, "jaw") {
		t.Fatalf("expected the jaw named, got %q", pat.Title)
	}
}

func TestDetectFloorsSortsAndCaps(t *testing.T) {
	doses, checkIns := foodHistory()
	p := engine.DefaultPolicy()
	got := Detect(testUser(), doses, checkIns, p)
	if len(got) == 0 {
		t.Fatalf("expected at least the food pattern")
	}
	if len(got) > p.PatternCap {
		t.Fatalf("more than %d patterns returned: %d", p.PatternCap, len(got))
	}
	for i, pat := range got {
		if pat.Confidence < p.PatternFloor {
			t.Fatalf("pattern %d below confidence floor: %d", i, pat.Confidence)
		}
		if i > 0 && got[i-1].Confidence < pat.Confidence {
			t.Fatalf("patterns not sorted by confidence: %d before %d", got[i-1].Confidence, pat.Confidence)
		}
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	doses, checkIns := foodHistory()
	p := engine.DefaultPolicy()
	base := Detect(testUser(), doses, checkIns, p)

	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 10; trial++ {
		shuffledDoses := make([]domain.DoseEvent, len(doses))
		copy(shuffledDoses, doses)
		rng.Shuffle(len(shuffledDoses), func(i, j int) { shuffledDoses[i], shuffledDoses[j] = shuffledDoses[j], shuffledDoses[i] })
		shuffledCheckIns := make([]domain.CheckIn, len(checkIns))
		copy(shuffledCheckIns, checkIns)
		rng.Shuffle(len(shuffledCheckIns), func(i, j int) { shuffledCheckIns[i], shuffledCheckIns[j] = shuffledCheckIns[j], shuffledCheckIns[i] })

		got := Detect(testUser(), shuffledDoses, shuffledCheckIns, p)
		if !reflect.DeepEqual(base, got) {
			t.Fatalf("detection depends on input order:\nbase=%+v\ngot=%+v", base, got)
		}
	}
}
