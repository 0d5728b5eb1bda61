package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/prepforge/assessment-engine/internal/models"

	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type ResultFilters struct {
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "completed_at", "raw_score", "accuracy_pct"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

// ResultRepository persists completed-test records. Save must be idempotent on
// session id: submissions are delivered at least once.
type ResultRepository interface {
	Save(ctx context.Context, result *models.TestResult) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.TestResult, error)
	ListByUser(ctx context.Context, userID string, filters ResultFilters) ([]*models.TestResult, int64, error)
	// CompletionTimes returns every completion timestamp for the user in
	// ascending order; it feeds the streak tracker.
	CompletionTimes(ctx context.Context, userID string) ([]time.Time, error)
}

// Repository is the root accessor for all repositories.
type Repository interface {
	Result() ResultRepository
}

// IsNotFoundError reports whether err is the driver's "no rows" condition.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
