package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/prepforge/assessment-engine/internal/errors"
	"github.com/prepforge/assessment-engine/internal/models"
	"github.com/prepforge/assessment-engine/internal/repositories"
	"github.com/prepforge/assessment-engine/internal/streak"
)

// AnalyticsService serves the dashboard and planner views: result history,
// accuracy trend, and the activity-calendar/streak projection.
type AnalyticsService interface {
	GetUserResults(ctx context.Context, userID string, filters repositories.ResultFilters) ([]*ResultSummary, int64, error)
	GetResult(ctx context.Context, sessionID string, userID string) (*models.TestResult, error)
	GetProgressOverview(ctx context.Context, userID string, windowDays int, asOf time.Time) (*ProgressOverview, error)
}

// ===== DATA STRUCTURES =====

type ResultSummary struct {
	SessionID        string    `json:"session_id"`
	CompletedAt      time.Time `json:"completed_at"`
	RawScore         float64   `json:"raw_score"`
	MaxScore         float64   `json:"max_score"`
	AccuracyPct      float64   `json:"accuracy_pct"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
}

type ProgressOverview struct {
	Window      *models.ActivityWindow `json:"window"`
	Streak      models.StreakState     `json:"streak"`
	TotalTests  int64                  `json:"total_tests"`
	GeneratedAt time.Time              `json:"generated_at"`
}

type analyticsService struct {
	repo    repositories.Repository
	tracker *streak.Tracker
	logger  *slog.Logger
}

func NewAnalyticsService(repo repositories.Repository, tracker *streak.Tracker, logger *slog.Logger) AnalyticsService {
	if tracker == nil {
		tracker = streak.NewTracker()
	}
	return &analyticsService{
		repo:    repo,
		tracker: tracker,
		logger:  logger,
	}
}

func (s *analyticsService) GetUserResults(ctx context.Context, userID string, filters repositories.ResultFilters) ([]*ResultSummary, int64, error) {
	results, total, err := s.repo.Result().ListByUser(ctx, userID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list results: %w", err)
	}

	summaries := make([]*ResultSummary, len(results))
	for i, result := range results {
		summaries[i] = &ResultSummary{
			SessionID:        result.SessionID,
			CompletedAt:      result.CompletedAt,
			RawScore:         result.RawScore,
			MaxScore:         result.MaxScore,
			AccuracyPct:      result.AccuracyPct,
			TimeTakenSeconds: result.TimeTakenSeconds,
		}
	}
	return summaries, total, nil
}

func (s *analyticsService) GetResult(ctx context.Context, sessionID string, userID string) (*models.TestResult, error) {
	result, err := s.repo.Result().GetBySessionID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if result.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "result", "read", "not owned by user")
	}
	return result, nil
}

// GetProgressOverview recomputes the streak projection from the full history.
// A malformed history degrades to the explicit unknown state instead of
// failing the whole view or rendering fake zeros.
func (s *analyticsService) GetProgressOverview(ctx context.Context, userID string, windowDays int, asOf time.Time) (*ProgressOverview, error) {
	history, err := s.repo.Result().CompletionTimes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion history: %w", err)
	}
	if history == nil {
		// The store answered: this user simply has no completions yet.
		history = []time.Time{}
	}

	window, state, err := s.tracker.Evaluate(history, windowDays, asOf)
	if err != nil {
		var ie *apperrors.DataIntegrityError
		if errors.As(err, &ie) {
			s.logger.Warn("Completion history is malformed, streak unavailable",
				"user_id", userID,
				"error", err)
		} else {
			return nil, err
		}
	}

	return &ProgressOverview{
		Window:      window,
		Streak:      state,
		TotalTests:  int64(len(history)),
		GeneratedAt: time.Now(),
	}, nil
}
