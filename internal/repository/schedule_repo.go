package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// ScheduleRepository reads schedule templates and their query definitions.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID returns (nil, nil) when the schedule does not exist.
func (r *ScheduleRepository) FindByID(ctx context.Context, id int64) (*models.Schedule, error) {
	var s models.Schedule
	err := r.db.WithContext(ctx).Where("schedule_id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// QueryDefinitions returns the query_schedules rows of a schedule with their
// query type preloaded.
func (r *ScheduleRepository) QueryDefinitions(ctx context.Context, scheduleID int64) ([]models.QuerySchedule, error) {
	var rows []models.QuerySchedule
	err := r.db.WithContext(ctx).
		Preload("QueryType").
		Where("schedule_id = ?", scheduleID).
		Order("delay_hours ASC, query_schedule_id ASC").
		Find(&rows).Error
	return rows, err
}
