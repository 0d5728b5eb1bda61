package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepforge/assessment-engine/internal/cache"
	"github.com/prepforge/assessment-engine/internal/config"
	"github.com/prepforge/assessment-engine/internal/events"
	"github.com/prepforge/assessment-engine/internal/handlers"
	"github.com/prepforge/assessment-engine/internal/middleware"
	"github.com/prepforge/assessment-engine/internal/models"
	"github.com/prepforge/assessment-engine/internal/repositories/postgres"
	"github.com/prepforge/assessment-engine/internal/services"
	"github.com/prepforge/assessment-engine/internal/streak"
	"github.com/prepforge/assessment-engine/internal/utils"
	"github.com/prepforge/assessment-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(logger)

	logger.Info("Starting assessment engine",
		"port", cfg.Port,
		"environment", cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var publisher events.EventPublisher
	publisher, err = events.NewKafkaEventPublisher(events.PublisherConfig{
		KafkaBrokers: cfg.KafkaBrokers,
		TopicName:    cfg.SubmissionTopic,
		Logger:       slogger,
	})
	if err != nil {
		if cfg.Environment == "production" {
			logger.Error("Failed to create Kafka publisher", "error", err)
			os.Exit(1)
		}
		// Development without a broker still runs; events go nowhere.
		logger.Warn("Kafka unavailable, falling back to mock publisher", "error", err)
		publisher = events.NewMockEventPublisher(slogger)
	}
	defer publisher.Close()

	middleware.InitAuth(cfg)

	repo := postgres.NewManager(db)
	store := cache.NewRedisSessionStore(redisClient, slogger)
	validator := utils.NewValidator()
	tracker := streak.NewTrackerAt(cfg.StreakOffsetMinutes)

	sessionService := services.NewSessionService(services.SessionServiceConfig{
		Store:     store,
		Repo:      repo,
		Publisher: publisher,
		Logger:    slogger,
		Validator: validator,
		DefaultScheme: models.MarkingScheme{
			CorrectMarks:   cfg.CorrectMarks,
			IncorrectMarks: cfg.IncorrectMarks,
			NoNegativeFor:  models.DefaultMarkingScheme().NoNegativeFor,
		},
		LowTimeThreshold: cfg.LowTimeWarningSeconds,
	})
	defer sessionService.Close()

	analyticsService := services.NewAnalyticsService(repo, tracker, slogger)
	exportService := services.NewExportService(repo, slogger)

	handlerManager := handlers.NewHandlerManager(handlers.HandlerConfig{
		SessionService:     sessionService,
		AnalyticsService:   analyticsService,
		ExportService:      exportService,
		Validator:          validator,
		Logger:             logger,
		ActivityWindowDays: cfg.ActivityWindowDays,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	handlerManager.SetupRoutes(router, middleware.RequireAuth(logger))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("HTTP server listening", "addr", server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server stopped")
}
