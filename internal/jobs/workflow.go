// Package jobs runs the nightly insights refresh: recompute every active
// user's engines and persist the detected patterns as history rows.
package jobs

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	WorkflowName = "nightly-insights-refresh"

	// DefaultCronSchedule runs the refresh at 03:00 UTC.
	DefaultCronSchedule = "0 3 * * *"
)

// RefreshResult is the workflow's summary payload, visible in workflow
// history.
type RefreshResult struct {
	Users     int `json:"users"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// NightlyRefreshWorkflow lists active users, then refreshes each one in its
// own activity so a single bad history cannot sink the batch.
func NightlyRefreshWorkflow(ctx workflow.Context) (RefreshResult, error) {
	var result RefreshResult

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	})
	var userIDs []string
	if err := workflow.ExecuteActivity(listCtx, ActivityListActiveUsers).Get(ctx, &userIDs); err != nil {
		return result, err
	}
	result.Users = len(userIDs)

	refreshCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	})
	logger := workflow.GetLogger(ctx)
	for _, userID := range userIDs {
		if err := workflow.ExecuteActivity(refreshCtx, ActivityRefreshUser, userID).Get(ctx, nil); err != nil {
			logger.Warn("user insights refresh failed", "user_id", userID, "error", err)
			result.Failed++
			continue
		}
		result.Refreshed++
	}
	return result, nil
}
