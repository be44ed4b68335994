package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// ErrSurveyHasQueries is returned when deleting a survey that already has
// query rows.
var ErrSurveyHasQueries = errors.New("survey has dependent queries")

// SurveyRepository handles survey database operations.
type SurveyRepository struct {
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// FindAll returns surveys with pagination and an optional active filter.
func (r *SurveyRepository) FindAll(limit, page int, active *bool) ([]models.Survey, int64, error) {
	var surveys []models.Survey
	var total int64

	db := r.db.Model(&models.Survey{})
	if active != nil {
		db = db.Where("is_active = ?", *active)
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

	if err := db.Limit(limit).Offset(offset).Order("survey_id ASC").Find(&surveys).Error; err != nil {
		return nil, 0, err
	}
	return surveys, total, nil
}

// FindActive returns every active survey.
func (r *SurveyRepository) FindActive(ctx context.Context) ([]models.Survey, error) {
	var surveys []models.Survey
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("survey_id ASC").Find(&surveys).Error
	return surveys, err
}

// FindByID returns a survey by ID.
func (r *SurveyRepository) FindByID(id int64) (*models.Survey, error) {
	var survey models.Survey
	if err := r.db.Where("survey_id = ?", id).First(&survey).Error; err != nil {
		return nil, err
	}
	return &survey, nil
}

// SetActive flips the is_active gate. It returns gorm.ErrRecordNotFound for
// an unknown survey.
func (r *SurveyRepository) SetActive(id int64, active bool) error {
	res := r.db.Model(&models.Survey{}).Where("survey_id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the value is unchanged
		if _, err := r.FindByID(id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a survey unless query rows reference it.
func (r *SurveyRepository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var survey models.Survey
		if err := tx.Where("survey_id = ?", id).First(&survey).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Query{}).Where("survey_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrSurveyHasQueries
		}
		return tx.Delete(&models.Survey{}, "survey_id = ?", id).Error
	})
}
