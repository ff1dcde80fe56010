package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/platform/logger"
)

type PatternRecordRepo interface {
	// ReplaceForUser swaps the user's current pattern set atomically so the
	// history table always reflects the latest detection run.
	ReplaceForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, records []*domain.PatternRecord) error
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.PatternRecord, error)
}

type patternRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatternRecordRepo(db *gorm.DB, baseLog *logger.Logger) PatternRecordRepo {
	return &patternRecordRepo{db: db, log: baseLog.With("repo", "PatternRecordRepo")}
}

func (r *patternRecordRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *patternRecordRepo) ReplaceForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, records []*domain.PatternRecord) error {
	run := func(conn *gorm.DB) error {
		if err := conn.WithContext(ctx).
			Unscoped().
			Where("user_id = ?", userID).
			Delete(&domain.PatternRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return conn.WithContext(ctx).Create(&records).Error
	}
	if tx != nil {
		return run(tx)
	}
	return r.db.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		return run(inner)
	})
}

func (r *patternRecordRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.PatternRecord, error) {
	var records []*domain.PatternRecord
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("confidence DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
