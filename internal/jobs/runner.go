package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/evelark/doseline-backend/internal/platform/envutil"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/temporalx"
)

type Runner struct {
	log        *logger.Logger
	tc         temporalsdkclient.Client
	activities *Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, activities *Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if activities == nil || activities.Users == nil || activities.Insights == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{log: log, tc: tc, activities: activities}, nil
}

// Start registers the refresh workflow plus activities and polls until ctx
// ends. Worker start is retried with backoff to ride out server restarts.
func (r *Runner) Start(ctx context.Context) error {
	cfg := temporalx.LoadConfig()
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(NightlyRefreshWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(r.activities.ListActiveUsers, activity.RegisterOptions{Name: ActivityListActiveUsers})
	w.RegisterActivityWithOptions(r.activities.RefreshUserInsights, activity.RegisterOptions{Name: ActivityRefreshUser})

	maxWait := envutil.DurationSeconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)
	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		err := w.Start()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("temporal worker start failed: %w", err)
		}
		if r.log != nil {
			r.log.Warn("Temporal worker start retrying", "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
		}
	}
	defer w.Stop()

	if err := r.ensureSchedule(ctx, cfg); err != nil && r.log != nil {
		r.log.Warn("Failed to schedule nightly refresh", "error", err)
	}

	<-ctx.Done()
	return nil
}

// ensureSchedule starts the cron workflow. An execution already running under
// the fixed id means a previous boot scheduled it, which is fine.
func (r *Runner) ensureSchedule(ctx context.Context, cfg temporalx.Config) error {
	cron := envutil.String("INSIGHTS_REFRESH_CRON", DefaultCronSchedule)
	_, err := r.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:           WorkflowName,
		TaskQueue:    cfg.TaskQueue,
		CronSchedule: cron,
	}, WorkflowName)
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &already) {
		return nil
	}
	if err == nil && r.log != nil {
		r.log.Info("Nightly insights refresh scheduled", "cron", cron)
	}
	return err
}
