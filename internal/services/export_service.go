package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/prepforge/assessment-engine/internal/repositories"
)

// ExportService renders a user's result history as a spreadsheet.
type ExportService interface {
	ExportUserResults(ctx context.Context, userID string) ([]byte, error)
}

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) ExportUserResults(ctx context.Context, userID string) ([]byte, error) {
	results, _, err := s.repo.Result().ListByUser(ctx, userID, repositories.ResultFilters{
		SortBy:    "completed_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get results for export: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Session ID", "Completed At", "Raw Score", "Max Score", "Accuracy %",
		"Correct", "Incorrect", "Unattempted", "Time Taken (minutes)",
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, result := range results {
		report, err := result.ScoreReport()
		if err != nil {
			s.logger.Warn("Skipping result with unreadable report",
				"session_id", result.SessionID,
				"error", err)
			continue
		}

		row := []interface{}{
			result.SessionID,
			result.CompletedAt.Format(time.RFC3339),
			result.RawScore,
			result.MaxScore,
			result.AccuracyPct,
			report.Correct,
			report.Incorrect,
			report.Unattempted,
			result.TimeTakenSeconds / 60,
		}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	return buf.Bytes(), nil
}
