package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"surveyplanner/internal/models"
	"surveyplanner/internal/planning"
	"surveyplanner/internal/worker"
)

// QueryLister lists executed queries.
type QueryLister interface {
	FindAll(limit, page int, surveyID int64, status string) ([]models.Query, int64, error)
}

// QueryHandler lists query executions.
type QueryHandler struct {
	queries QueryLister
	logger  *zap.Logger
}

func NewQueryHandler(queries QueryLister, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, logger: logger}
}

// List GET /api/queries?survey_id=&status=&limit=&page=
func (h *QueryHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	var surveyID int64
	if raw := c.QueryParam("survey_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, "survey_id must be a number")
		}
		surveyID = id
	}
	status := strings.ToUpper(c.QueryParam("status"))

	rows, total, err := h.queries.FindAll(limit, page, surveyID, status)
	if err != nil {
		h.logger.Error("Failed to list queries", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve queries")
	}
	return successResponse(c, "Successful", paginatedNamedResponse("queries", rows, total, page, limit))
}

// Invoker executes one fired trigger.
type Invoker interface {
	Handle(ctx context.Context, p planning.Payload) (worker.Outcome, error)
}

// WorkerHandler is the delivery endpoint of the trigger substrate.
type WorkerHandler struct {
	worker Invoker
	logger *zap.Logger
}

func NewWorkerHandler(w Invoker, logger *zap.Logger) *WorkerHandler {
	return &WorkerHandler{worker: w, logger: logger}
}

// Invoke POST /api/worker/invoke with a trigger payload as body. Non-2xx
// answers make the substrate retry the delivery.
func (h *WorkerHandler) Invoke(c echo.Context) error {
	var p planning.Payload
	if err := c.Bind(&p); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid trigger payload")
	}

	out, err := h.worker.Handle(c.Request().Context(), p)
	switch {
	case errors.Is(err, worker.ErrInvalidPayload):
		return errorResponse(c, http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Warn("Worker invocation failed", zap.String("trigger", p.TriggerName), zap.Error(err))
		return c.JSON(http.StatusBadGateway, models.APIResponse{Status: false, Msg: err.Error(), Obj: out})
	}
	msg := "Query succeeded"
	if out.Duplicate {
		msg = "Query already " + strings.ToLower(out.Status)
	}
	return successResponse(c, msg, out)
}
