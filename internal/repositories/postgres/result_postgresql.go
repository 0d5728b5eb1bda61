package postgres

import (
	"context"
	"time"

	"github.com/prepforge/assessment-engine/internal/models"
	"github.com/prepforge/assessment-engine/internal/repositories"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

// Save inserts the result, silently keeping the first row when the same
// session is delivered again.
func (r ResultPostgreSQL) Save(ctx context.Context, result *models.TestResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(result).Error
}

func (r ResultPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r ResultPostgreSQL) ListByUser(ctx context.Context, userID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	var results []*models.TestResult
	var total int64

	query := r.db.WithContext(ctx).Model(&models.TestResult{}).Where("user_id = ?", userID)
	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applyPaginationAndSort(query, filters)
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (r ResultPostgreSQL) CompletionTimes(ctx context.Context, userID string) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.TestResult{}).
		Where("user_id = ?", userID).
		Order("completed_at asc").
		Pluck("completed_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r ResultPostgreSQL) applyFilters(query *gorm.DB, filters repositories.ResultFilters) *gorm.DB {
	if filters.DateFrom != nil {
		query = query.Where("completed_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("completed_at <= ?", *filters.DateTo)
	}
	return query
}

func (r ResultPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.ResultFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "completed_at", "raw_score", "accuracy_pct":
	default:
		sortBy = "completed_at"
	}
	order := "desc"
	if filters.SortOrder == "asc" {
		order = "asc"
	}
	query = query.Order(sortBy + " " + order)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

// Manager bundles the concrete repositories behind the root interface.
type Manager struct {
	result repositories.ResultRepository
}

func NewManager(db *gorm.DB) repositories.Repository {
	return &Manager{result: NewResultPostgreSQL(db)}
}

func (m *Manager) Result() repositories.ResultRepository {
	return m.result
}
