package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
)

type recordingDoseEventRepo struct {
	repos.DoseEventRepo
	created []domain.DoseEvent
}

func (f *recordingDoseEventRepo) Create(ctx context.Context, tx *gorm.DB, event *domain.DoseEvent) (*domain.DoseEvent, error) {
	f.created = append(f.created, *event)
	return event, nil
}

type recordingCheckInRepo struct {
	repos.CheckInRepo
	created []domain.CheckIn
}

func (f *recordingCheckInRepo) Create(ctx context.Context, tx *gorm.DB, checkIn *domain.CheckIn) (*domain.CheckIn, error) {
	f.created = append(f.created, *checkIn)
	return checkIn, nil
}

func TestImportHistoryNormalizesAndCountsSkips(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	userID := uuid.New()
	batchID := uuid.New()
	doseRepo := &recordingDoseEventRepo{}
	checkInRepo := &recordingCheckInRepo{}
	cache := newFakeCache()
	svc := NewDoseService(
		log,
		engine.DefaultPolicy(),
		&fakeBatchRepo{batch: &domain.DoseBatch{
			ID: batchID, UserID: userID, Substance: "psilocybin", Unit: "ug",
			ReferenceDose: 100, HalfLifeHours: 288,
		}},
		doseRepo,
		checkInRepo,
		cache,
	)

	sig, intf := 7, 1
	doseRows := []engine.RawDoseRow{
		{
			ID: uuid.NewString(), Amount: 100, Unit: "ug",
			Timestamp: "2026-01-05T09:00:00Z",
			Signal:    &sig, Texture: &sig, Interference: &intf,
			ThresholdFeel: "sweetspot",
		},
		{
			// No unit: dropped by the normalizer.
			ID: uuid.NewString(), Amount: 90,
			Timestamp: "2026-01-08T09:00:00Z",
		},
		{
			// Unit differs from the batch: dropped by the import.
			ID: uuid.NewString(), Amount: 2, Unit: "g",
			Timestamp: "2026-01-11T09:00:00Z",
		},
		{
			// Unscored historical dose: imported without completion.
			ID: uuid.NewString(), Amount: 80, Unit: "ug",
			Timestamp: "2026-01-14T09:00:00Z",
		},
	}
	three := 3
	checkInRows := []engine.RawCheckInRow{
		{
			ID: uuid.NewString(), Timestamp: "2026-01-05T15:00:00Z",
			Energy: &three, Clarity: &three, Stability: &three,
		},
		{
			// Missing stability: dropped.
			ID: uuid.NewString(), Timestamp: "2026-01-08T15:00:00Z",
			Energy: &three, Clarity: &three,
		},
	}

	result, err := svc.ImportHistory(context.Background(), userID, batchID, doseRows, checkInRows)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.DosesImported != 2 || result.DosesSkipped != 2 {
		t.Fatalf("expected 2 imported / 2 skipped doses, got %d/%d", result.DosesImported, result.DosesSkipped)
	}
	if result.CheckInsImported != 1 || result.CheckInsSkipped != 1 {
		t.Fatalf("expected 1 imported / 1 skipped check-in, got %d/%d", result.CheckInsImported, result.CheckInsSkipped)
	}

	scored := doseRepo.created[0]
	if scored.UserID != userID || scored.BatchID != batchID {
		t.Fatal("imported dose not attributed to user and batch")
	}
	if scored.DayClassification != domain.DayGreen {
		t.Fatalf("expected green classification from signal 7 / interference 1, got %s", scored.DayClassification)
	}
	if scored.ScoresCompletedAt == nil {
		t.Fatal("pre-scored import should be marked completed")
	}
	unscored := doseRepo.created[1]
	if unscored.ScoresCompletedAt != nil {
		t.Fatal("unscored import must stay open for completion")
	}
	if !unscored.TakenAt.Equal(time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected taken_at: %v", unscored.TakenAt)
	}

	if cache.version == 0 {
		t.Fatal("import should bump the insights data version")
	}
}
