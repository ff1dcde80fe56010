package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
	"github.com/evelark/doseline-backend/internal/services"
)

const (
	ActivityListActiveUsers = "ListActiveUsers"
	ActivityRefreshUser     = "RefreshUserInsights"
)

type Activities struct {
	Log      *logger.Logger
	Users    repos.UserRepo
	Insights services.InsightsService
}

func (a *Activities) ListActiveUsers(ctx context.Context) ([]string, error) {
	if a == nil || a.Users == nil {
		return nil, fmt.Errorf("jobs: activity not configured")
	}
	users, err := a.Users.ListActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("jobs: list active users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID.String())
	}
	return ids, nil
}

func (a *Activities) RefreshUserInsights(ctx context.Context, rawUserID string) error {
	if a == nil || a.Insights == nil {
		return fmt.Errorf("jobs: activity not configured")
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil || userID == uuid.Nil {
		return fmt.Errorf("jobs: invalid user id %q", rawUserID)
	}
	return a.Insights.RefreshUser(ctx, userID)
}
