package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// QueryRepository records worker executions.
type QueryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// FindAll returns queries with pagination, newest first.
func (r *QueryRepository) FindAll(limit, page int, surveyID int64, status string) ([]models.Query, int64, error) {
	var rows []models.Query
	var total int64

	db := r.db.Model(&models.Query{})
	if surveyID > 0 {
		db = db.Where("survey_id = ?", surveyID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("query_id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Start records q as RUNNING. If a row for the same trigger already exists
// and is running or done, that row is returned with started=false. A FAILED
// row is restarted.
func (r *QueryRepository) Start(ctx context.Context, q *models.Query) (*models.Query, bool, error) {
	started := false
	var out models.Query
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("trigger_name = ?", q.TriggerName).First(&out).Error
		now := time.Now().UTC()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			q.Status = models.QueryStatusRunning
			q.ExecutedAtUTC = &now
			if err := tx.Create(q).Error; err != nil {
				return err
			}
			out = *q
			started = true
			return nil
		case err != nil:
			return err
		case out.Status == models.QueryStatusFailed || out.Status == models.QueryStatusPlanned:
			res := tx.Model(&models.Query{}).
				Where("query_id = ? AND status = ?", out.QueryID, out.Status).
				Updates(map[string]interface{}{
					"status":          models.QueryStatusRunning,
					"executed_at_utc": now,
					"error_text":      "",
				})
			if res.Error != nil {
				return res.Error
			}
			started = res.RowsAffected > 0
			out.Status = models.QueryStatusRunning
			out.ExecutedAtUTC = &now
			return nil
		default:
			return nil
		}
	})
	if err != nil {
		return nil, false, err
	}
	return &out, started, nil
}

// MarkSucceeded stores the result and its forecast row.
func (r *QueryRepository) MarkSucceeded(ctx context.Context, queryID int64, res models.QueryResult, forecast *models.Forecast) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&models.Query{}).
			Where("query_id = ? AND status = ?", queryID, models.QueryStatusRunning).
			Updates(map[string]interface{}{
				"status":         models.QueryStatusSucceeded,
				"recommendation": res.Recommendation,
				"confidence":     res.Confidence,
				"rationale":      res.Rationale,
				"source":         res.Source,
				"result_json":    res.ResultJSON,
				"error_text":     "",
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 || forecast == nil {
			return nil
		}
		forecast.QueryID = queryID
		return tx.Create(forecast).Error
	})
}

// MarkFailed records the failure of a running query.
func (r *QueryRepository) MarkFailed(ctx context.Context, queryID int64, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.Query{}).
		Where("query_id = ? AND status = ?", queryID, models.QueryStatusRunning).
		Updates(map[string]interface{}{
			"status":     models.QueryStatusFailed,
			"error_text": errMsg,
		}).Error
}

// FindPairedForecast returns the BaselineForecast query of surveyID whose
// paired follow-up falls due at followUpAt, or (nil, nil).
func (r *QueryRepository) FindPairedForecast(ctx context.Context, surveyID int64, followUpAt time.Time) (*models.Query, error) {
	var candidates []models.Query
	err := r.db.WithContext(ctx).
		Where("survey_id = ? AND query_kind = ? AND paired_followup_delay_hours IS NOT NULL", surveyID, "BaselineForecast").
		Where("scheduled_for_utc <= ?", followUpAt).
		Order("scheduled_for_utc DESC, query_id DESC").
		Limit(500).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if PairsWith(candidates[i], followUpAt) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// PairsWith reports whether forecast's paired follow-up is due at followUpAt,
// compared to the minute.
func PairsWith(forecast models.Query, followUpAt time.Time) bool {
	if forecast.PairedFollowupDelayHours == nil {
		return false
	}
	due := forecast.ScheduledForUTC.Add(time.Duration(*forecast.PairedFollowupDelayHours) * time.Hour)
	return due.UTC().Truncate(time.Minute).Equal(followUpAt.UTC().Truncate(time.Minute))
}

// LLMByID is exposed for the worker, which resolves provider credentials.
func (r *QueryRepository) LLMByID(ctx context.Context, id int64) (*models.LLM, error) {
	var l models.LLM
	return firstOrNil(r.db.WithContext(ctx).Where("llm_id = ?", id), &l)
}
