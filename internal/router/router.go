package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"surveyplanner/internal/handler/api"
	"surveyplanner/internal/middleware"
	"surveyplanner/internal/repository"
)

// Services are the long-lived components built in main.
type Services struct {
	Planner   api.Planner
	Inspector api.TriggerInspector
	Cleaner   api.GroupCleaner
	Worker    api.Invoker
}

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	svc Services,
	logger *zap.Logger,
	apiKey string,
	deduper middleware.TriggerDeduper,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger(logger))

	// Repositories
	surveys := repository.NewSurveyRepository(db)
	queries := repository.NewQueryRepository(db)
	reports := repository.NewReportRepository(db)

	// Handlers
	planningHandler := api.NewPlanningHandler(svc.Planner, logger)
	scheduledHandler := api.NewScheduledQueryHandler(svc.Planner, svc.Inspector, svc.Cleaner, logger)
	surveyHandler := api.NewSurveyHandler(surveys, logger)
	queryHandler := api.NewQueryHandler(queries, logger)
	workerHandler := api.NewWorkerHandler(svc.Worker, logger)
	reportHandler := api.NewReportHandler(reports, logger)

	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.POST("/planning/run", planningHandler.Run)
	apiGroup.GET("/planning/preview", planningHandler.Preview)

	apiGroup.GET("/scheduled-queries", scheduledHandler.List)
	apiGroup.GET("/scheduled-queries/summary", scheduledHandler.Summary)
	apiGroup.GET("/scheduled-queries/reconcile", scheduledHandler.Reconcile)
	apiGroup.DELETE("/scheduled-queries", scheduledHandler.DeleteAll)

	apiGroup.GET("/surveys", surveyHandler.List)
	apiGroup.GET("/surveys/:id", surveyHandler.Get)
	apiGroup.POST("/surveys/:id/activate", surveyHandler.Activate)
	apiGroup.POST("/surveys/:id/deactivate", surveyHandler.Deactivate)
	apiGroup.DELETE("/surveys/:id", surveyHandler.Delete)

	apiGroup.GET("/queries", queryHandler.List)

	apiGroup.GET("/reports/surveys/:id/runs", reportHandler.Runs)
	apiGroup.GET("/reports/surveys/:id/comparison", reportHandler.Comparison)

	// Trigger deliveries, deduplicated by trigger_name
	apiGroup.POST("/worker/invoke", workerHandler.Invoke, middleware.TriggerDedup(deduper))

	// Health check
	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	e.GET("/health", health)
	e.GET("/healthz", health)
}
