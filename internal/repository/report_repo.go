package repository

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// ReportRepository reads back finished queries and their forecasts.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// SurveyRuns returns the survey's forecast rows in fire order. An unknown
// survey yields gorm.ErrRecordNotFound.
func (r *ReportRepository) SurveyRuns(ctx context.Context, surveyID int64) (*models.RunReport, error) {
	db := r.db.WithContext(ctx)

	var survey models.Survey
	if err := db.Where("survey_id = ?", surveyID).First(&survey).Error; err != nil {
		return nil, err
	}

	runs := []models.SurveyRun{}
	err := db.Table("queries AS q").
		Select(`q.query_id, q.query_kind, q.query_type_id, q.paired_query_id,
			f.horizon_type, q.recommendation, q.confidence, q.rationale,
			q.scheduled_for_utc, q.executed_at_utc`).
		Joins("JOIN crypto_forecasts AS f ON f.query_id = q.query_id").
		Where("q.survey_id = ?", surveyID).
		Order("q.scheduled_for_utc ASC, f.horizon_type ASC").
		Scan(&runs).Error
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{SurveyID: surveyID, Runs: runs}
	if err := db.Model(&models.Query{}).Where("survey_id = ?", surveyID).Count(&report.TotalQueries).Error; err != nil {
		return nil, err
	}
	var followUps int64
	err = db.Model(&models.QuerySchedule{}).
		Where("schedule_id = ? AND delay_hours > 0", survey.ScheduleID).
		Count(&followUps).Error
	if err != nil {
		return nil, err
	}
	report.ExpectedQueries = followUps + 1
	return report, nil
}

// Comparison pairs each forecast of the survey with its follow-up.
func (r *ReportRepository) Comparison(ctx context.Context, surveyID int64) ([]models.HorizonComparison, error) {
	report, err := r.SurveyRuns(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return CompareRuns(report.Runs), nil
}

// CompareRuns builds one comparison per BaselineForecast run. A follow-up
// belongs to the forecast named by its paired_query_id; unpaired follow-ups
// are left out.
func CompareRuns(runs []models.SurveyRun) []models.HorizonComparison {
	followUps := make(map[int64]models.SurveyRun)
	for _, run := range runs {
		if run.QueryKind == "FollowUp" && run.PairedQueryID != nil {
			followUps[*run.PairedQueryID] = run
		}
	}

	out := []models.HorizonComparison{}
	for _, run := range runs {
		if run.QueryKind != "BaselineForecast" {
			continue
		}
		cmp := models.HorizonComparison{
			HorizonType:       run.HorizonType,
			ForecastQueryID:   run.QueryID,
			InitialPrediction: run.Recommendation,
			InitialTimestamp:  runTime(run),
		}
		if fu, ok := followUps[run.QueryID]; ok {
			id := fu.QueryID
			at := runTime(fu)
			cmp.FollowUpQueryID = &id
			cmp.FollowUpActual = fu.Recommendation
			cmp.FollowUpTimestamp = &at
			if cmp.InitialPrediction != "" && cmp.FollowUpActual != "" {
				match := cmp.InitialPrediction == cmp.FollowUpActual
				cmp.Match = &match
			}
		}
		out = append(out, cmp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].InitialTimestamp.Equal(out[j].InitialTimestamp) {
			return out[i].InitialTimestamp.Before(out[j].InitialTimestamp)
		}
		return out[i].HorizonType < out[j].HorizonType
	})
	return out
}

func runTime(run models.SurveyRun) time.Time {
	if run.ExecutedAtUTC != nil {
		return run.ExecutedAtUTC.UTC()
	}
	return run.ScheduledForUTC.UTC()
}
