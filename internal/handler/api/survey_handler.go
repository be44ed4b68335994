package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"surveyplanner/internal/models"
	"surveyplanner/internal/repository"
)

// SurveyStore is the survey repository as used by the API.
type SurveyStore interface {
	FindAll(limit, page int, active *bool) ([]models.Survey, int64, error)
	FindByID(id int64) (*models.Survey, error)
	SetActive(id int64, active bool) error
	Delete(id int64) error
}

// SurveyHandler lists surveys and toggles their activation gate.
type SurveyHandler struct {
	surveys SurveyStore
	logger  *zap.Logger
}

func NewSurveyHandler(surveys SurveyStore, logger *zap.Logger) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, logger: logger}
}

// List GET /api/surveys?limit=&page=&active=
func (h *SurveyHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	var active *bool
	if raw := c.QueryParam("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, "active must be true or false")
		}
		active = &v
	}

	surveys, total, err := h.surveys.FindAll(limit, page, active)
	if err != nil {
		h.logger.Error("Failed to list surveys", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve surveys")
	}
	return successResponse(c, "Successful", paginatedNamedResponse("surveys", surveys, total, page, limit))
}

// Get GET /api/surveys/:id
func (h *SurveyHandler) Get(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "id is required")
	}
	s, err := h.surveys.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "Survey not found")
	}
	if err != nil {
		h.logger.Error("Failed to load survey", zap.Int64("survey_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve survey")
	}
	return successResponse(c, "Successful", s)
}

// Activate POST /api/surveys/:id/activate
func (h *SurveyHandler) Activate(c echo.Context) error {
	return h.setActive(c, true)
}

// Deactivate POST /api/surveys/:id/deactivate
func (h *SurveyHandler) Deactivate(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *SurveyHandler) setActive(c echo.Context, active bool) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "id is required")
	}
	err := h.surveys.SetActive(id, active)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, http.StatusNotFound, "Survey not found")
	}
	if err != nil {
		h.logger.Error("Failed to update survey", zap.Int64("survey_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to update survey")
	}
	return successResponse(c, "Survey updated", map[string]interface{}{"survey_id": id, "is_active": active})
}

// Delete DELETE /api/surveys/:id
func (h *SurveyHandler) Delete(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "id is required")
	}
	err := h.surveys.Delete(id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errorResponse(c, http.StatusNotFound, "Survey not found")
	case errors.Is(err, repository.ErrSurveyHasQueries):
		return errorResponse(c, http.StatusConflict, "Survey has queries; deactivate it instead")
	case err != nil:
		h.logger.Error("Failed to delete survey", zap.Int64("survey_id", id), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to delete survey")
	}
	return successResponse(c, "Survey deleted", nil)
}
