package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/evelark/doseline-backend/internal/handlers"
	"github.com/evelark/doseline-backend/internal/middleware"
	"github.com/evelark/doseline-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	UserHandler     *handlers.UserHandler
	DoseHandler     *handlers.DoseHandler
	CheckInHandler  *handlers.CheckInHandler
	InsightsHandler *handlers.InsightsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("doseline-backend"))

	origins := strings.Split(envutil.String("CORS_ORIGINS", "http://localhost:3000,http://localhost:5174"), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/refresh", cfg.AuthHandler.Refresh)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetProfile)
	protected.PUT("/user/cycle-tracking", cfg.UserHandler.SetCycleTracking)
	// Diary
	protected.POST("/batches", cfg.DoseHandler.CreateBatch)
	protected.GET("/batches", cfg.DoseHandler.ListBatches)
	protected.POST("/doses", cfg.DoseHandler.LogDose)
	protected.GET("/doses", cfg.DoseHandler.ListDoses)
	protected.POST("/doses/:id/scores", cfg.DoseHandler.CompleteScores)
	protected.POST("/import", cfg.DoseHandler.ImportHistory)
	protected.POST("/checkins", cfg.CheckInHandler.LogCheckIn)
	protected.GET("/checkins", cfg.CheckInHandler.ListCheckIns)
	// Insights
	protected.GET("/insights/summary", cfg.InsightsHandler.Summary)
	protected.GET("/insights/threshold", cfg.InsightsHandler.Threshold)
	protected.GET("/insights/carryover", cfg.InsightsHandler.Carryover)
	protected.GET("/insights/patterns", cfg.InsightsHandler.Patterns)

	return router
}
