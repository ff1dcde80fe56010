package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/evelark/doseline-backend/internal/clients/redis"
	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
)

// CompleteScoresInput carries the one-time post-dose scoring payload.
type CompleteScoresInput struct {
	Signal        *int
	Texture       *int
	Interference  *int
	ThresholdFeel *domain.ThresholdFeel
}

// ImportResult reports what a history import kept and dropped.
type ImportResult struct {
	DosesImported    int `json:"doses_imported"`
	DosesSkipped     int `json:"doses_skipped"`
	CheckInsImported int `json:"check_ins_imported"`
	CheckInsSkipped  int `json:"check_ins_skipped"`
}

type DoseService interface {
	CreateBatch(ctx context.Context, batch *domain.DoseBatch) (*domain.DoseBatch, error)
	ListBatches(ctx context.Context, userID uuid.UUID) ([]*domain.DoseBatch, error)
	LogDose(ctx context.Context, event *domain.DoseEvent) (*domain.DoseEvent, error)
	ListDoses(ctx context.Context, userID uuid.UUID) ([]domain.DoseEvent, error)
	CompleteScores(ctx context.Context, userID, eventID uuid.UUID, in CompleteScoresInput) (*domain.DoseEvent, error)
	LogCheckIn(ctx context.Context, checkIn *domain.CheckIn) (*domain.CheckIn, error)
	ListCheckIns(ctx context.Context, userID uuid.UUID) ([]domain.CheckIn, error)
	ImportHistory(ctx context.Context, userID, batchID uuid.UUID, doseRows []engine.RawDoseRow, checkInRows []engine.RawCheckInRow) (*ImportResult, error)
}

type doseService struct {
	log           *logger.Logger
	policy        engine.Policy
	batchRepo     repos.DoseBatchRepo
	doseEventRepo repos.DoseEventRepo
	checkInRepo   repos.CheckInRepo
	cache         redisclient.InsightsCache
}

func NewDoseService(
	log *logger.Logger,
	policy engine.Policy,
	batchRepo repos.DoseBatchRepo,
	doseEventRepo repos.DoseEventRepo,
	checkInRepo repos.CheckInRepo,
	cache redisclient.InsightsCache,
) DoseService {
	return &doseService{
		log:           log.With("service", "DoseService"),
		policy:        policy,
		batchRepo:     batchRepo,
		doseEventRepo: doseEventRepo,
		checkInRepo:   checkInRepo,
		cache:         cache,
	}
}

func (s *doseService) CreateBatch(ctx context.Context, batch *domain.DoseBatch) (*domain.DoseBatch, error) {
	if batch.UserID == uuid.Nil {
		return nil, fmt.Errorf("batch requires a user")
	}
	batch.Substance = strings.TrimSpace(batch.Substance)
	batch.Unit = strings.ToLower(strings.TrimSpace(batch.Unit))
	if batch.Substance == "" || batch.Unit == "" {
		return nil, fmt.Errorf("batch requires a substance and a unit")
	}
	if batch.ReferenceDose <= 0 {
		return nil, fmt.Errorf("reference dose must be positive")
	}
	if batch.HalfLifeHours <= 0 {
		batch.HalfLifeHours = s.policy.DefaultHalfLifeHours
	}
	batch.ID = uuid.New()
	return s.batchRepo.Create(ctx, nil, batch)
}

func (s *doseService) ListBatches(ctx context.Context, userID uuid.UUID) ([]*domain.DoseBatch, error) {
	return s.batchRepo.GetByUserID(ctx, nil, userID)
}

func (s *doseService) LogDose(ctx context.Context, event *domain.DoseEvent) (*domain.DoseEvent, error) {
	if event.UserID == uuid.Nil {
		return nil, fmt.Errorf("dose requires a user")
	}
	if event.Amount <= 0 {
		return nil, fmt.Errorf("dose amount must be positive")
	}
	if event.TakenAt.IsZero() {
		return nil, fmt.Errorf("dose requires a timestamp")
	}

	batch, err := s.batchRepo.GetByID(ctx, nil, event.BatchID)
	if err != nil {
		return nil, fmt.Errorf("unknown batch: %w", err)
	}
	if batch.UserID != event.UserID {
		return nil, fmt.Errorf("batch does not belong to user")
	}
	event.Unit = strings.ToLower(strings.TrimSpace(event.Unit))
	if event.Unit == "" {
		event.Unit = batch.Unit
	}
	if event.Unit != batch.Unit {
		return nil, fmt.Errorf("dose unit %q does not match batch unit %q", event.Unit, batch.Unit)
	}

	event.ID = uuid.New()
	event.DayClassification = domain.DayUnclassified
	event.ScoresCompletedAt = nil

	created, err := s.doseEventRepo.Create(ctx, nil, event)
	if err != nil {
		return nil, err
	}
	s.bumpVersion(ctx, event.UserID)
	return created, nil
}

func (s *doseService) ListDoses(ctx context.Context, userID uuid.UUID) ([]domain.DoseEvent, error) {
	return s.doseEventRepo.GetByUserID(ctx, nil, userID)
}

func (s *doseService) CompleteScores(ctx context.Context, userID, eventID uuid.UUID, in CompleteScoresInput) (*domain.DoseEvent, error) {
	event, err := s.doseEventRepo.GetByID(ctx, nil, eventID)
	if err != nil {
		return nil, fmt.Errorf("unknown dose event: %w", err)
	}
	if event.UserID != userID {
		return nil, fmt.Errorf("dose event does not belong to user")
	}
	if event.ScoresCompletedAt != nil {
		return nil, repos.ErrScoresAlreadyCompleted
	}
	if err := validateScore("signal", in.Signal); err != nil {
		return nil, err
	}
	if err := validateScore("texture", in.Texture); err != nil {
		return nil, err
	}
	if err := validateScore("interference", in.Interference); err != nil {
		return nil, err
	}
	if in.ThresholdFeel != nil {
		switch *in.ThresholdFeel {
		case domain.FeelNothing, domain.FeelUnder, domain.FeelSweetSpot, domain.FeelOver:
		default:
			return nil, fmt.Errorf("invalid threshold feel %q", *in.ThresholdFeel)
		}
	}

	update := repos.ScoreUpdate{
		Signal:            in.Signal,
		Texture:           in.Texture,
		Interference:      in.Interference,
		ThresholdFeel:     in.ThresholdFeel,
		DayClassification: engine.ClassifyDay(in.Signal, in.Texture, in.Interference, s.policy),
	}
	updated, err := s.doseEventRepo.CompleteScores(ctx, nil, eventID, update)
	if err != nil {
		return nil, err
	}
	s.bumpVersion(ctx, userID)
	return updated, nil
}

func (s *doseService) LogCheckIn(ctx context.Context, checkIn *domain.CheckIn) (*domain.CheckIn, error) {
	if checkIn.UserID == uuid.Nil {
		return nil, fmt.Errorf("check-in requires a user")
	}
	if checkIn.RecordedAt.IsZero() {
		checkIn.RecordedAt = time.Now().UTC()
	}
	for name, v := range map[string]int{
		"energy":    checkIn.Energy,
		"clarity":   checkIn.Clarity,
		"stability": checkIn.Stability,
	} {
		if v < 1 || v > 5 {
			return nil, fmt.Errorf("%s must be between 1 and 5", name)
		}
	}
	if checkIn.DoseEventID != nil {
		event, err := s.doseEventRepo.GetByID(ctx, nil, *checkIn.DoseEventID)
		if err != nil {
			return nil, fmt.Errorf("unknown dose event: %w", err)
		}
		if event.UserID != checkIn.UserID {
			return nil, fmt.Errorf("dose event does not belong to user")
		}
	}

	checkIn.ID = uuid.New()
	created, err := s.checkInRepo.Create(ctx, nil, checkIn)
	if err != nil {
		return nil, err
	}
	s.bumpVersion(ctx, checkIn.UserID)
	return created, nil
}

func (s *doseService) ListCheckIns(ctx context.Context, userID uuid.UUID) ([]domain.CheckIn, error) {
	return s.checkInRepo.GetByUserID(ctx, nil, userID)
}

// ImportHistory backfills diary rows exported from another tracker. Rows run
// through the normalizer: malformed rows are dropped and counted, never abort
// the batch. Imported doses that already carry scores are marked completed.
func (s *doseService) ImportHistory(ctx context.Context, userID, batchID uuid.UUID, doseRows []engine.RawDoseRow, checkInRows []engine.RawCheckInRow) (*ImportResult, error) {
	batch, err := s.batchRepo.GetByID(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("unknown batch: %w", err)
	}
	if batch.UserID != userID {
		return nil, fmt.Errorf("batch does not belong to user")
	}

	events := engine.NormalizeDoseRows(doseRows, s.policy)
	checkIns := engine.NormalizeCheckInRows(checkInRows)
	result := &ImportResult{
		DosesSkipped:    len(doseRows) - len(events),
		CheckInsSkipped: len(checkInRows) - len(checkIns),
	}

	for i := range events {
		ev := &events[i]
		ev.UserID = userID
		if ev.BatchID == uuid.Nil {
			ev.BatchID = batch.ID
		}
		if ev.Unit != batch.Unit {
			result.DosesSkipped++
			continue
		}
		if ev.ThresholdFeel != nil || ev.DayClassification != domain.DayUnclassified {
			completedAt := ev.TakenAt
			ev.ScoresCompletedAt = &completedAt
		}
		if _, err := s.doseEventRepo.Create(ctx, nil, ev); err != nil {
			return nil, fmt.Errorf("failed to import dose: %w", err)
		}
		result.DosesImported++
	}
	for i := range checkIns {
		ci := &checkIns[i]
		ci.UserID = userID
		if _, err := s.checkInRepo.Create(ctx, nil, ci); err != nil {
			return nil, fmt.Errorf("failed to import check-in: %w", err)
		}
		result.CheckInsImported++
	}

	s.bumpVersion(ctx, userID)
	s.log.Info("Imported history",
		"user_id", userID,
		"doses", result.DosesImported,
		"doses_skipped", result.DosesSkipped,
		"check_ins", result.CheckInsImported,
		"check_ins_skipped", result.CheckInsSkipped,
	)
	return result, nil
}

// bumpVersion invalidates memoized engine output. Cache trouble never fails a
// diary write; the next insights read just recomputes.
func (s *doseService) bumpVersion(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpDataVersion(ctx, userID.String()); err != nil {
		s.log.Warn("Failed to bump insights data version", "user_id", userID, "error", err)
	}
}

func validateScore(name string, v *int) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 10 {
		return fmt.Errorf("%s must be between 0 and 10", name)
	}
	return nil
}
