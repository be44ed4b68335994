package models

// Survey maps to the `surveys` table.
type Survey struct {
	SurveyID         int64 `gorm:"column:survey_id;primaryKey;autoIncrement" json:"survey_id"`
	AssetID          int64 `gorm:"column:asset_id;index" json:"asset_id"`
	ScheduleID       int64 `gorm:"column:schedule_id;index" json:"schedule_id"`
	LivePromptID     int64 `gorm:"column:live_prompt_id;index" json:"live_prompt_id"`
	ForecastPromptID int64 `gorm:"column:forecast_prompt_id;index" json:"forecast_prompt_id"`
	IsActive         bool  `gorm:"column:is_active;default:true" json:"is_active"`
}

func (Survey) TableName() string {
	return "surveys"
}
