package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/evelark/doseline-backend/internal/clients/redis"
	"github.com/evelark/doseline-backend/internal/db"
	"github.com/evelark/doseline-backend/internal/engine"
	"github.com/evelark/doseline-backend/internal/handlers"
	"github.com/evelark/doseline-backend/internal/middleware"
	"github.com/evelark/doseline-backend/internal/observability"
	"github.com/evelark/doseline-backend/internal/platform/envutil"
	"github.com/evelark/doseline-backend/internal/platform/logger"
	"github.com/evelark/doseline-backend/internal/repos"
	"github.com/evelark/doseline-backend/internal/server"
	"github.com/evelark/doseline-backend/internal/services"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	jwtSecretKey := envutil.String("JWT_SECRET_KEY", "defaultsecret")
	accessTokenTTL := envutil.DurationSeconds("ACCESS_TOKEN_TTL", 3600)
	refreshTokenTTL := envutil.DurationSeconds("REFRESH_TOKEN_TTL", 86400)
	policy := engine.LoadPolicyFromEnv()

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "doseline-backend",
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	batchRepo := repos.NewDoseBatchRepo(thePG, log)
	doseEventRepo := repos.NewDoseEventRepo(thePG, log)
	checkInRepo := repos.NewCheckInRepo(thePG, log)
	patternRepo := repos.NewPatternRecordRepo(thePG, log)

	// Insights cache. Optional: a dead Redis just means every read recomputes.
	cache, err := redis.NewInsightsCache(log)
	if err != nil {
		log.Warn("Insights cache disabled", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// Services
	log.Info("Setting up services...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, accessTokenTTL, refreshTokenTTL)
	userService := services.NewUserService(log, userRepo, cache)
	doseService := services.NewDoseService(log, policy, batchRepo, doseEventRepo, checkInRepo, cache)
	insightsService := services.NewInsightsService(log, policy, userRepo, batchRepo, doseEventRepo, checkInRepo, patternRepo, cache)

	// Handlers
	log.Info("Setting up handlers...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	doseHandler := handlers.NewDoseHandler(doseService)
	checkInHandler := handlers.NewCheckInHandler(doseService)
	insightsHandler := handlers.NewInsightsHandler(insightsService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		UserHandler:     userHandler,
		DoseHandler:     doseHandler,
		CheckInHandler:  checkInHandler,
		InsightsHandler: insightsHandler,
	})

	port := envutil.String("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
