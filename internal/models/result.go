package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// TestResult is the persisted record of one completed session. SessionID is
// unique so at-least-once delivery from submission can be deduplicated.
type TestResult struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	SessionID        string         `json:"session_id" gorm:"not null;size:36;uniqueIndex"`
	UserID           string         `json:"user_id" gorm:"not null;size:64;index"`
	CompletedAt      time.Time      `json:"completed_at" gorm:"not null;index"`
	TimeTakenSeconds int            `json:"time_taken_seconds" gorm:"not null"`
	RawScore         float64        `json:"raw_score" gorm:"not null"`
	MaxScore         float64        `json:"max_score" gorm:"not null"`
	AccuracyPct      float64        `json:"accuracy_pct" gorm:"not null"`
	Report           datatypes.JSON `json:"report" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (TestResult) TableName() string {
	return "test_results"
}

// SetReport stores the full score report as the JSON column and mirrors the
// headline figures into the queryable columns.
func (r *TestResult) SetReport(report *ScoreReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal score report: %w", err)
	}
	r.Report = datatypes.JSON(data)
	r.RawScore = report.RawScore
	r.MaxScore = report.MaxScore
	r.AccuracyPct = report.AccuracyPct
	return nil
}

// ScoreReport decodes the stored report JSON.
func (r *TestResult) ScoreReport() (*ScoreReport, error) {
	var report ScoreReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score report: %w", err)
	}
	return &report, nil
}
