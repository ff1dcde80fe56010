package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/platform/logger"
)

// ErrScoresAlreadyCompleted guards the one-time post-dose mutation: once the
// scores are in, the event is immutable.
var ErrScoresAlreadyCompleted = fmt.Errorf("post-dose scores already completed")

// ScoreUpdate carries the single allowed post-dose mutation.
type ScoreUpdate struct {
	Signal        *int
	Texture       *int
	Interference  *int
	ThresholdFeel *domain.ThresholdFeel

	DayClassification domain.DayClassification
}

type DoseEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *domain.DoseEvent) (*domain.DoseEvent, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.DoseEvent, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]domain.DoseEvent, error)
	GetByBatchID(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]domain.DoseEvent, error)
	CompleteScores(ctx context.Context, tx *gorm.DB, id uuid.UUID, update ScoreUpdate) (*domain.DoseEvent, error)
}

type doseEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDoseEventRepo(db *gorm.DB, baseLog *logger.Logger) DoseEventRepo {
	return &doseEventRepo{db: db, log: baseLog.With("repo", "DoseEventRepo")}
}

func (r *doseEventRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *doseEventRepo) Create(ctx context.Context, tx *gorm.DB, event *domain.DoseEvent) (*domain.DoseEvent, error) {
	if err := r.conn(tx).WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *doseEventRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.DoseEvent, error) {
	var event domain.DoseEvent
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *doseEventRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]domain.DoseEvent, error) {
	var events []domain.DoseEvent
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("taken_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *doseEventRepo) GetByBatchID(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]domain.DoseEvent, error) {
	var events []domain.DoseEvent
	err := r.conn(tx).WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("taken_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *doseEventRepo) CompleteScores(ctx context.Context, tx *gorm.DB, id uuid.UUID, update ScoreUpdate) (*domain.DoseEvent, error) {
	event, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if event.ScoresCompletedAt != nil {
		return nil, ErrScoresAlreadyCompleted
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"signal":              update.Signal,
		"texture":             update.Texture,
		"interference":        update.Interference,
		"day_classification":  update.DayClassification,
		"scores_completed_at": now,
	}
	if update.ThresholdFeel != nil {
		updates["threshold_feel"] = *update.ThresholdFeel
	}
	err = r.conn(tx).WithContext(ctx).Model(&domain.DoseEvent{}).
		Where("id = ? AND scores_completed_at IS NULL", id).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tx, id)
}
