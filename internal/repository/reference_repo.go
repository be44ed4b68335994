package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// ReferenceRepository reads the assets, prompts and LLM configs surveys
// point at. Lookups return (nil, nil) for missing rows.
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) AssetByID(ctx context.Context, id int64) (*models.Asset, error) {
	var a models.Asset
	return firstOrNil(r.db.WithContext(ctx).Preload("AssetType").Where("asset_id = ?", id), &a)
}

func (r *ReferenceRepository) PromptByID(ctx context.Context, id int64) (*models.Prompt, error) {
	var p models.Prompt
	return firstOrNil(r.db.WithContext(ctx).Where("prompt_id = ?", id), &p)
}

func (r *ReferenceRepository) LLMByID(ctx context.Context, id int64) (*models.LLM, error) {
	var l models.LLM
	return firstOrNil(r.db.WithContext(ctx).Where("llm_id = ?", id), &l)
}

func firstOrNil[T any](q *gorm.DB, dest *T) (*T, error) {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dest, nil
}
