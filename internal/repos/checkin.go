package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/platform/logger"
)

type CheckInRepo interface {
	Create(ctx context.Context, tx *gorm.DB, checkIn *domain.CheckIn) (*domain.CheckIn, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]domain.CheckIn, error)
}

type checkInRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckInRepo(db *gorm.DB, baseLog *logger.Logger) CheckInRepo {
	return &checkInRepo{db: db, log: baseLog.With("repo", "CheckInRepo")}
}

func (r *checkInRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *checkInRepo) Create(ctx context.Context, tx *gorm.DB, checkIn *domain.CheckIn) (*domain.CheckIn, error) {
	if err := r.conn(tx).WithContext(ctx).Create(checkIn).Error; err != nil {
		return nil, err
	}
	return checkIn, nil
}

func (r *checkInRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]domain.CheckIn, error) {
	var checkIns []domain.CheckIn
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at ASC").
		Find(&checkIns).Error
	if err != nil {
		return nil, err
	}
	return checkIns, nil
}
