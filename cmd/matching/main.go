package main

import (
	"fmt"
	"log"

	"github.com/architect/peer-matching/internal/common/database"
	commonHandlers "github.com/architect/peer-matching/internal/common/handlers"
	"github.com/architect/peer-matching/internal/common/health"
	"github.com/architect/peer-matching/internal/common/middleware"
	matchingHandlers "github.com/architect/peer-matching/internal/matching/handlers"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/services"
	"github.com/architect/peer-matching/pkg/config"
	"github.com/architect/peer-matching/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database (SQLite for development, PostgreSQL for production)
	if err := database.InitWithType(cfg.Database.Type, cfg.Database.DSN); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(
		&models.PerformanceRecord{},
		&models.Match{},
		&models.HelpRequest{},
		&models.HelpOffer{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Install matching defaults from configuration
	services.SetDefaults(services.ConfigFrom(cfg.Matching))

	// Create Gin engine
	router := gin.Default()

	// Apply middleware
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.ErrorHandler())

	// Health check endpoints
	healthChecker := health.NewHealthChecker(database.GetDB(), "1.0.0")
	healthHandler := commonHandlers.NewHealthHandler(healthChecker)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/readiness", healthHandler.Readiness)
	router.GET("/health/liveness", healthHandler.Liveness)
	router.GET("/health/metrics", healthHandler.Metrics)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		matchingGroup := v1.Group("/matching")
		{
			// Performance store contract (written by the assessment evaluator)
			matchingGroup.POST("/performance", middleware.AuthRequired(), matchingHandlers.RecordPerformance)
			matchingGroup.GET("/students/:id/performance", middleware.AuthRequired(), matchingHandlers.GetStudentPerformance)

			// Automatic matching
			matchingGroup.POST("/create-matches", middleware.AuthRequired(), matchingHandlers.CreateMatches)
			matchingGroup.GET("/my-matches", middleware.AuthRequired(), matchingHandlers.GetMyMatches)
			matchingGroup.PATCH("/matches/:id/status", middleware.AuthRequired(), matchingHandlers.UpdateMatchStatus)
			matchingGroup.GET("/stats", middleware.AuthRequired(), matchingHandlers.GetStats)
			matchingGroup.GET("/chapters", middleware.AuthRequired(), matchingHandlers.GetAvailableChapters)
			matchingGroup.GET("/potential-tutors", middleware.AuthRequired(), matchingHandlers.GetPotentialTutors)
			matchingGroup.GET("/potential-learners", middleware.AuthRequired(), matchingHandlers.GetPotentialLearners)

			// Help exchange (manual path)
			matchingGroup.POST("/help-requests", middleware.AuthRequired(), matchingHandlers.CreateHelpRequest)
			matchingGroup.GET("/help-requests", middleware.AuthRequired(), matchingHandlers.ListHelpRequests)
			matchingGroup.POST("/help-requests/:id/respond", middleware.AuthRequired(), matchingHandlers.RespondToHelpRequest)
			matchingGroup.POST("/help-offers", middleware.AuthRequired(), matchingHandlers.CreateHelpOffer)
			matchingGroup.GET("/help-offers", middleware.AuthRequired(), matchingHandlers.ListHelpOffers)
			matchingGroup.POST("/help-offers/:id/respond", middleware.AuthRequired(), matchingHandlers.RespondToHelpOffer)
		}
	}

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Get().Info("starting peer matching server",
		zap.String("addr", addr),
		zap.String("env", cfg.Server.Env),
		zap.String("db_type", cfg.Database.Type),
	)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
