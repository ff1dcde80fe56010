package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	redisclient "github.com/evelark/doseline-backend/internal/clients/redis"
	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
	"github.com/evelark/doseline-backend/internal/engine/patterns"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
)

// InsightsSummary bundles the output of all three engines for one user. A nil
// Threshold or Carryover means that engine declined to answer (not enough
// data, or inputs it refuses to guess over).
type InsightsSummary struct {
	Threshold  *engine.ThresholdRange  `json:"threshold"`
	Carryover  *engine.CarryoverResult `json:"carryover"`
	Patterns   []patterns.Pattern      `json:"patterns"`
	ComputedAt time.Time               `json:"computed_at"`
}

type InsightsService interface {
	Summary(ctx context.Context, userID uuid.UUID) (*InsightsSummary, error)
	Threshold(ctx context.Context, userID, batchID uuid.UUID) (*engine.ThresholdRange, error)
	Carryover(ctx context.Context, userID uuid.UUID, at time.Time) (*engine.CarryoverResult, error)
	Patterns(ctx context.Context, userID uuid.UUID) ([]patterns.Pattern, error)
	RefreshUser(ctx context.Context, userID uuid.UUID) error
}

type insightsService struct {
	log           *logger.Logger
	policy        engine.Policy
	userRepo      repos.UserRepo
	batchRepo     repos.DoseBatchRepo
	doseEventRepo repos.DoseEventRepo
	checkInRepo   repos.CheckInRepo
	patternRepo   repos.PatternRecordRepo
	cache         redisclient.InsightsCache
}

func NewInsightsService(
	log *logger.Logger,
	policy engine.Policy,
	userRepo repos.UserRepo,
	batchRepo repos.DoseBatchRepo,
	doseEventRepo repos.DoseEventRepo,
	checkInRepo repos.CheckInRepo,
	patternRepo repos.PatternRecordRepo,
	cache redisclient.InsightsCache,
) InsightsService {
	return &insightsService{
		log:           log.With("service", "InsightsService"),
		policy:        policy,
		userRepo:      userRepo,
		batchRepo:     batchRepo,
		doseEventRepo: doseEventRepo,
		checkInRepo:   checkInRepo,
		patternRepo:   patternRepo,
		cache:         cache,
	}
}

// history is everything the engines consume, loaded once per request.
type history struct {
	user     *domain.User
	batch    *domain.DoseBatch
	doses    []domain.DoseEvent
	checkIns []domain.CheckIn
}

func (s *insightsService) loadHistory(ctx context.Context, userID uuid.UUID) (*history, error) {
	h := &history{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.userRepo.GetByID(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		h.user = user
		return nil
	})
	g.Go(func() error {
		batch, err := s.batchRepo.GetLatestByUserID(gctx, nil, userID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to load latest batch: %w", err)
		}
		h.batch = batch
		return nil
	})
	g.Go(func() error {
		doses, err := s.doseEventRepo.GetByUserID(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("failed to load dose history: %w", err)
		}
		h.doses = doses
		return nil
	})
	g.Go(func() error {
		checkIns, err := s.checkInRepo.GetByUserID(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("failed to load check-in history: %w", err)
		}
		h.checkIns = checkIns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *insightsService) Summary(ctx context.Context, userID uuid.UUID) (*InsightsSummary, error) {
	version := int64(0)
	if s.cache != nil {
		v, err := s.cache.DataVersion(ctx, userID.String())
		if err == nil {
			version = v
			if payload, ok, err := s.cache.Get(ctx, userID.String(), version); err == nil && ok {
				var cached InsightsSummary
				if err := json.Unmarshal(payload, &cached); err == nil {
					return &cached, nil
				}
			}
		} else {
			s.log.Warn("Insights cache unavailable, computing directly", "user_id", userID, "error", err)
		}
	}

	summary, err := s.compute(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, userID.String(), version, payload); err != nil {
				s.log.Warn("Failed to cache insights summary", "user_id", userID, "error", err)
			}
		}
	}
	return summary, nil
}

// compute runs the three engines over one shared history load. The engines
// are pure, so they run concurrently without coordination.
func (s *insightsService) compute(ctx context.Context, userID uuid.UUID, at time.Time) (*InsightsSummary, error) {
	h, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &InsightsSummary{ComputedAt: at}
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary.Threshold = s.thresholdFor(h)
		return nil
	})
	g.Go(func() error {
		summary.Carryover = s.carryoverFor(h, at)
		return nil
	})
	g.Go(func() error {
		summary.Patterns = patterns.Detect(*h.user, h.doses, h.checkIns, s.policy)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *insightsService) thresholdFor(h *history) *engine.ThresholdRange {
	batchID := uuid.Nil
	if h.batch != nil {
		batchID = h.batch.ID
	}
	return engine.CalculateThresholdRange(h.doses, batchID, s.policy)
}

func (s *insightsService) carryoverFor(h *history, at time.Time) *engine.CarryoverResult {
	if h.batch == nil {
		return nil
	}
	var batchDoses []domain.DoseEvent
	for _, d := range h.doses {
		if d.BatchID == h.batch.ID {
			batchDoses = append(batchDoses, d)
		}
	}
	result := engine.ComputeCarryover(engine.CarryoverInput{
		Doses:         batchDoses,
		ReferenceTime: at,
		ReferenceDose: h.batch.ReferenceDose,
		HalfLifeHours: h.batch.HalfLifeHours,
	}, s.policy)
	return &result
}

func (s *insightsService) Threshold(ctx context.Context, userID, batchID uuid.UUID) (*engine.ThresholdRange, error) {
	h, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if batchID == uuid.Nil {
		return s.thresholdFor(h), nil
	}
	batch, err := s.batchRepo.GetByID(ctx, nil, batchID)
	if err != nil {
		return nil, fmt.Errorf("unknown batch: %w", err)
	}
	if batch.UserID != userID {
		return nil, fmt.Errorf("batch does not belong to user")
	}
	return engine.CalculateThresholdRange(h.doses, batch.ID, s.policy), nil
}

func (s *insightsService) Carryover(ctx context.Context, userID uuid.UUID, at time.Time) (*engine.CarryoverResult, error) {
	h, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.carryoverFor(h, at), nil
}

func (s *insightsService) Patterns(ctx context.Context, userID uuid.UUID) ([]patterns.Pattern, error) {
	h, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	return patterns.Detect(*h.user, h.doses, h.checkIns, s.policy), nil
}

// RefreshUser recomputes a user's insights and persists the detected patterns
// as history rows. Run nightly per active user.
func (s *insightsService) RefreshUser(ctx context.Context, userID uuid.UUID) error {
	summary, err := s.compute(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}

	records := make([]*domain.PatternRecord, 0, len(summary.Patterns))
	for _, p := range summary.Patterns {
		doseIDs, err := json.Marshal(p.EvidenceDoseIDs)
		if err != nil {
			return fmt.Errorf("failed to encode dose evidence: %w", err)
		}
		checkInIDs, err := json.Marshal(p.EvidenceCheckInIDs)
		if err != nil {
			return fmt.Errorf("failed to encode check-in evidence: %w", err)
		}
		records = append(records, &domain.PatternRecord{
			ID:                 p.ID,
			UserID:             userID,
			Kind:               string(p.Type),
			Title:              p.Title,
			Description:        p.Description,
			Confidence:         p.Confidence,
			EvidenceDoseIDs:    datatypes.JSON(doseIDs),
			EvidenceCheckInIDs: datatypes.JSON(checkInIDs),
			Recommendation:     p.Recommendation,
			DetectedAt:         summary.ComputedAt,
		})
	}
	if err := s.patternRepo.ReplaceForUser(ctx, nil, userID, records); err != nil {
		return fmt.Errorf("failed to persist pattern records: %w", err)
	}

	if s.cache != nil {
		version, err := s.cache.DataVersion(ctx, userID.String())
		if err == nil {
			if payload, err := json.Marshal(summary); err == nil {
				if err := s.cache.Set(ctx, userID.String(), version, payload); err != nil {
					s.log.Warn("Failed to warm insights cache", "user_id", userID, "error", err)
				}
			}
		}
	}
	s.log.Info("Refreshed insights", "user_id", userID, "patterns", len(records))
	return nil
}
