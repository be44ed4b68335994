package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// ReportStore reads finished runs back for a survey.
type ReportStore interface {
	SurveyRuns(ctx context.Context, surveyID int64) (*models.RunReport, error)
	Comparison(ctx context.Context, surveyID int64) ([]models.HorizonComparison, error)
}

type ReportHandler struct {
	reports ReportStore
	logger  *zap.Logger
}

func NewReportHandler(reports ReportStore, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// Runs GET /api/reports/surveys/:id/runs
func (h *ReportHandler) Runs(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "id is required")
	}
	report, err := h.reports.SurveyRuns(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "Survey not found")
	}
	if err != nil {
		h.logger.Error("Failed to load survey runs", zap.Int64("survey_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve survey runs")
	}
	return successResponse(c, "Successful", report)
}

// Comparison GET /api/reports/surveys/:id/comparison
func (h *ReportHandler) Comparison(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "id is required")
	}
	rows, err := h.reports.Comparison(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "Survey not found")
	}
	if err != nil {
		h.logger.Error("Failed to compare survey horizons", zap.Int64("survey_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve comparison")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"survey_id":   id,
		"comparisons": rows,
	})
}
