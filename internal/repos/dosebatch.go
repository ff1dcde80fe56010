package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/platform/logger"
)

type DoseBatchRepo interface {
	Create(ctx context.Context, tx *gorm.DB, batch *domain.DoseBatch) (*domain.DoseBatch, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.DoseBatch, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.DoseBatch, error)
	GetLatestByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*domain.DoseBatch, error)
}

type doseBatchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDoseBatchRepo(db *gorm.DB, baseLog *logger.Logger) DoseBatchRepo {
	return &doseBatchRepo{db: db, log: baseLog.With("repo", "DoseBatchRepo")}
}

func (r *doseBatchRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *doseBatchRepo) Create(ctx context.Context, tx *gorm.DB, batch *domain.DoseBatch) (*domain.DoseBatch, error) {
	if err := r.conn(tx).WithContext(ctx).Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *doseBatchRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.DoseBatch, error) {
	var batch domain.DoseBatch
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *doseBatchRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.DoseBatch, error) {
	var batches []*domain.DoseBatch
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *doseBatchRepo) GetLatestByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*domain.DoseBatch, error) {
	var batch domain.DoseBatch
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}
