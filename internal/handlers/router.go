package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/prepforge/assessment-engine/internal/services"
	"github.com/prepforge/assessment-engine/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	resultsHandler *ResultsHandler
}

type HandlerConfig struct {
	SessionService   services.SessionService
	AnalyticsService services.AnalyticsService
	ExportService    services.ExportService
	Validator        *utils.Validator
	Logger           utils.Logger
	// ActivityWindowDays is the default size of the progress calendar.
	ActivityWindowDays int
}

func NewHandlerManager(cfg HandlerConfig) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(cfg.SessionService, cfg.Validator, cfg.Logger),
		resultsHandler: NewResultsHandler(cfg.AnalyticsService, cfg.ExportService,
			cfg.ActivityWindowDays, cfg.Logger),
	}
}

// SetupRoutes sets up all API routes. The auth middleware runs on the whole v1
// group; every route below it sees an authenticated user id in the context.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/answers", hm.sessionHandler.SelectAnswer)
			sessions.DELETE("/:id/answers/:question_id", hm.sessionHandler.ClearAnswer)
			sessions.POST("/:id/review/:question_id", hm.sessionHandler.ToggleMarkForReview)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.POST("/:id/abort", hm.sessionHandler.AbortSession)
		}

		results := v1.Group("/results")
		{
			results.GET("/:session_id", hm.resultsHandler.GetResult)
		}

		me := v1.Group("/users/me")
		{
			me.GET("/results", hm.resultsHandler.ListResults)
			me.GET("/results/export", hm.resultsHandler.ExportResults)
			me.GET("/progress", hm.resultsHandler.GetProgress)
			me.GET("/streak", hm.resultsHandler.GetStreak)
		}
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "healthy",
		"service": "assessment-engine",
	})
}
