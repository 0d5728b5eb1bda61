package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepforge/assessment-engine/internal/repositories"
	"github.com/prepforge/assessment-engine/internal/services"
	"github.com/prepforge/assessment-engine/internal/utils"
)

type ResultsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
	exportService    services.ExportService
	windowDays       int
}

func NewResultsHandler(
	analyticsService services.AnalyticsService,
	exportService services.ExportService,
	windowDays int,
	logger utils.Logger,
) *ResultsHandler {
	return &ResultsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
		exportService:    exportService,
		windowDays:       windowDays,
	}
}

// ListResults lists the caller's completed test results
// @Summary List results
// @Description Lists the authenticated user's completed test results
// @Tags results
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} SuccessResponse{data=[]services.ResultSummary}
// @Failure 401 {object} ErrorResponse
// @Router /users/me/results [get]
func (h *ResultsHandler) ListResults(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseResultFilters(c)
	results, total, err := h.analyticsService.GetUserResults(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   total,
		"limit":   filters.Limit,
		"offset":  filters.Offset,
	})
}

// GetResult retrieves one result by session ID
// @Summary Get result
// @Description Retrieves the stored result of a completed session
// @Tags results
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} models.TestResult
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /results/{session_id} [get]
func (h *ResultsHandler) GetResult(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.analyticsService.GetResult(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProgress returns the activity calendar and streak projection
// @Summary Get progress overview
// @Description Returns the rolling activity window, streak counters, and next milestone
// @Tags results
// @Produce json
// @Success 200 {object} services.ProgressOverview
// @Failure 401 {object} ErrorResponse
// @Router /users/me/progress [get]
func (h *ResultsHandler) GetProgress(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	windowDays := h.windowDays
	if raw := c.Query("window_days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			windowDays = parsed
		}
	}

	overview, err := h.analyticsService.GetProgressOverview(c.Request.Context(), userID, windowDays, time.Now())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// GetStreak returns just the streak counters without the calendar window
// @Summary Get streak
// @Description Returns the current streak counters and next milestone
// @Tags results
// @Produce json
// @Success 200 {object} models.StreakState
// @Failure 401 {object} ErrorResponse
// @Router /users/me/streak [get]
func (h *ResultsHandler) GetStreak(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	overview, err := h.analyticsService.GetProgressOverview(c.Request.Context(), userID, h.windowDays, time.Now())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview.Streak)
}

// ExportResults downloads the caller's result history as a spreadsheet
// @Summary Export results
// @Description Exports the authenticated user's result history as an xlsx file
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Failure 401 {object} ErrorResponse
// @Router /users/me/results/export [get]
func (h *ResultsHandler) ExportResults(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting result history")

	data, err := h.exportService.ExportUserResults(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("results-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ResultsHandler) parseResultFilters(c *gin.Context) repositories.ResultFilters {
	filters := repositories.ResultFilters{
		Limit:     20,
		SortBy:    "completed_at",
		SortOrder: "desc",
	}

	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			filters.Limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			filters.Offset = parsed
		}
	}
	if raw := c.Query("date_from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateFrom = &parsed
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateTo = &parsed
		}
	}
	if raw := c.Query("sort_by"); raw != "" {
		filters.SortBy = raw
	}
	if raw := c.Query("sort_order"); raw != "" {
		filters.SortOrder = raw
	}

	return filters
}

func (h *ResultsHandler) handleServiceError(c *gin.Context, err error) {
	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrResultNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Result not found",
		})
	default:
		h.LogError(c, err, "Results operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
