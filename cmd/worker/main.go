package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/evelark/doseline-backend/internal/clients/redis"
	"github.com/evelark/doseline-backend/internal/db"
	"github.com/evelark/doseline-backend/internal/engine"
	"github.com/evelark/doseline-backend/internal/jobs"
	"github.com/evelark/doseline-backend/internal/platform/envutil"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
	"github.com/evelark/doseline-backend/internal/services"
	"github.com/evelark/doseline-backend/internal/temporalx"
)

func main() {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	policy := engine.LoadPolicyFromEnv()

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	userRepo := repos.NewUserRepo(thePG, log)
	batchRepo := repos.NewDoseBatchRepo(thePG, log)
	doseEventRepo := repos.NewDoseEventRepo(thePG, log)
	checkInRepo := repos.NewCheckInRepo(thePG, log)
	patternRepo := repos.NewPatternRecordRepo(thePG, log)

	cache, err := redis.NewInsightsCache(log)
	if err != nil {
		log.Warn("Insights cache disabled", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	insightsService := services.NewInsightsService(log, policy, userRepo, batchRepo, doseEventRepo, checkInRepo, patternRepo, cache)

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Temporal client init failed", "error", err)
		os.Exit(1)
	}
	if tc == nil {
		log.Error("Worker requires TEMPORAL_ADDRESS")
		os.Exit(1)
	}
	defer tc.Close()

	runner, err := jobs.NewRunner(log, tc, &jobs.Activities{
		Log:      log,
		Users:    userRepo,
		Insights: insightsService,
	})
	if err != nil {
		log.Error("Worker init failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runner.Start(ctx); err != nil && err != context.Canceled {
		log.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
}
