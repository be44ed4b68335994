package repository

import (
	"context"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// PlanningSource is the read-only view of the database used by the planner.
type PlanningSource struct {
	surveys   *SurveyRepository
	schedules *ScheduleRepository
	refs      *ReferenceRepository
}

func NewPlanningSource(db *gorm.DB) *PlanningSource {
	return &PlanningSource{
		surveys:   NewSurveyRepository(db),
		schedules: NewScheduleRepository(db),
		refs:      NewReferenceRepository(db),
	}
}

func (s *PlanningSource) ActiveSurveys(ctx context.Context) ([]models.Survey, error) {
	return s.surveys.FindActive(ctx)
}

func (s *PlanningSource) ScheduleByID(ctx context.Context, id int64) (*models.Schedule, error) {
	return s.schedules.FindByID(ctx, id)
}

func (s *PlanningSource) QueryDefinitionsBySchedule(ctx context.Context, scheduleID int64) ([]models.QuerySchedule, error) {
	return s.schedules.QueryDefinitions(ctx, scheduleID)
}

func (s *PlanningSource) PromptByID(ctx context.Context, id int64) (*models.Prompt, error) {
	return s.refs.PromptByID(ctx, id)
}

func (s *PlanningSource) LLMByID(ctx context.Context, id int64) (*models.LLM, error) {
	return s.refs.LLMByID(ctx, id)
}

func (s *PlanningSource) AssetByID(ctx context.Context, id int64) (*models.Asset, error) {
	return s.refs.AssetByID(ctx, id)
}
