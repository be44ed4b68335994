package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"surveyplanner/internal/models"
	"surveyplanner/internal/planning"
	"surveyplanner/internal/trigger"
)

// Planner is the planning pipeline as seen by the API.
type Planner interface {
	Run(ctx context.Context, opts planning.RunOptions) planning.RunReport
	Preview(ctx context.Context, base planning.Date) (*planning.Plan, error)
	DefaultBaseDate() planning.Date
	Group() string
}

// PlanningHandler runs and previews plans.
type PlanningHandler struct {
	planner Planner
	logger  *zap.Logger
}

func NewPlanningHandler(p Planner, logger *zap.Logger) *PlanningHandler {
	return &PlanningHandler{planner: p, logger: logger}
}

// Run plans and dispatches one base date.
// POST /api/planning/run
func (h *PlanningHandler) Run(c echo.Context) error {
	var req models.PlanningRunRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	base, err := h.baseDate(req.BaseDate)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}

	report := h.planner.Run(c.Request().Context(), planning.RunOptions{
		BaseDate: base,
		Group:    req.Group,
		Repair:   req.Repair,
	})
	return statusResponse(c, report.Status, report)
}

// Preview computes the plan without dispatching it.
// GET /api/planning/preview?base_date=YYYY-MM-DD
func (h *PlanningHandler) Preview(c echo.Context) error {
	base, err := h.baseDate(c.QueryParam("base_date"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}
	plan, err := h.planner.Preview(c.Request().Context(), base)
	if err != nil {
		h.logger.Error("Failed to preview plan", zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Failed to load surveys")
	}
	return successResponse(c, "Successful", plan)
}

func (h *PlanningHandler) baseDate(raw string) (planning.Date, error) {
	if raw == "" {
		return h.planner.DefaultBaseDate(), nil
	}
	d, err := planning.ParseDate(raw)
	if err != nil {
		return planning.Date{}, errors.New("base_date must be YYYY-MM-DD")
	}
	return d, nil
}

// TriggerInspector reads a substrate group.
type TriggerInspector interface {
	List(ctx context.Context, group string) ([]trigger.Summary, error)
	Summary(ctx context.Context, group string) (trigger.GroupSummary, error)
	Reconcile(ctx context.Context, planned []string, group string) (trigger.ReconcileReport, error)
}

// GroupCleaner deletes a substrate group's triggers.
type GroupCleaner interface {
	DeleteGroup(ctx context.Context, group string, force bool) trigger.DeletionReport
}

// ScheduledQueryHandler exposes the triggers held by the substrate.
type ScheduledQueryHandler struct {
	planner   Planner
	inspector TriggerInspector
	cleaner   GroupCleaner
	logger    *zap.Logger
}

func NewScheduledQueryHandler(p Planner, inspector TriggerInspector, cleaner GroupCleaner, logger *zap.Logger) *ScheduledQueryHandler {
	return &ScheduledQueryHandler{planner: p, inspector: inspector, cleaner: cleaner, logger: logger}
}

func (h *ScheduledQueryHandler) group(c echo.Context) string {
	if g := c.QueryParam("group"); g != "" {
		return g
	}
	return h.planner.Group()
}

// List returns every trigger in the group.
// GET /api/scheduled-queries?group=
func (h *ScheduledQueryHandler) List(c echo.Context) error {
	group := h.group(c)
	list, err := h.inspector.List(c.Request().Context(), group)
	if errors.Is(err, trigger.ErrGroupNotFound) {
		return successResponse(c, "Group not found", map[string]interface{}{"group": group, "schedules": []trigger.Summary{}})
	}
	if err != nil {
		h.logger.Error("Failed to list triggers", zap.String("group", group), zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Failed to list scheduled queries")
	}
	return successResponse(c, "Successful", map[string]interface{}{"group": group, "schedules": list})
}

// Summary counts triggers by state.
// GET /api/scheduled-queries/summary?group=
func (h *ScheduledQueryHandler) Summary(c echo.Context) error {
	group := h.group(c)
	sum, err := h.inspector.Summary(c.Request().Context(), group)
	if err != nil {
		h.logger.Error("Failed to summarize triggers", zap.String("group", group), zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Failed to summarize scheduled queries")
	}
	return successResponse(c, "Successful", sum)
}

// Reconcile compares the plan for base_date with the group.
// GET /api/scheduled-queries/reconcile?base_date=&group=
func (h *ScheduledQueryHandler) Reconcile(c echo.Context) error {
	base := h.planner.DefaultBaseDate()
	if raw := c.QueryParam("base_date"); raw != "" {
		d, err := planning.ParseDate(raw)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, "base_date must be YYYY-MM-DD")
		}
		base = d
	}
	ctx := c.Request().Context()
	plan, err := h.planner.Preview(ctx, base)
	if err != nil {
		h.logger.Error("Failed to preview plan", zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Failed to load surveys")
	}
	group := h.group(c)
	rep, err := h.inspector.Reconcile(ctx, plan.Names(), group)
	if err != nil {
		h.logger.Error("Failed to reconcile", zap.String("group", group), zap.Error(err))
		return errorResponse(c, http.StatusBadGateway, "Failed to reconcile scheduled queries")
	}
	return successResponse(c, "Successful", rep)
}

// DeleteAll removes every trigger in the group, and the group itself when
// force is set.
// DELETE /api/scheduled-queries?group=&force=true
func (h *ScheduledQueryHandler) DeleteAll(c echo.Context) error {
	group := h.group(c)
	report := h.cleaner.DeleteGroup(c.Request().Context(), group, queryBool(c, "force"))
	if report.Status != trigger.StatusSuccess {
		h.logger.Warn("Group deletion incomplete",
			zap.String("group", group), zap.String("status", report.Status), zap.Strings("errors", report.Errors))
	}
	return statusResponse(c, report.Status, report)
}
