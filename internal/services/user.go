package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/evelark/doseline-backend/internal/clients/redis"
	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
)

type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	SetCycleTracking(ctx context.Context, userID uuid.UUID, enabled bool) error
}

type userService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	cache    redisclient.InsightsCache
}

func NewUserService(log *logger.Logger, userRepo repos.UserRepo, cache redisclient.InsightsCache) UserService {
	return &userService{log: log.With("service", "UserService"), userRepo: userRepo, cache: cache}
}

func (s *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user.Password = ""
	return user, nil
}

// SetCycleTracking flips the opt-in gate for cycle-phase detection, so it
// invalidates memoized engine output too.
func (s *userService) SetCycleTracking(ctx context.Context, userID uuid.UUID, enabled bool) error {
	if err := s.userRepo.SetCycleTracking(ctx, nil, userID, enabled); err != nil {
		return fmt.Errorf("failed to update cycle tracking: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.BumpDataVersion(ctx, userID.String()); err != nil {
			s.log.Warn("Failed to bump insights data version", "user_id", userID, "error", err)
		}
	}
	return nil
}
