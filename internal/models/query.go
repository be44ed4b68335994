package models

import (
	"time"

	"gorm.io/datatypes"
)

// Query statuses.
const (
	QueryStatusPlanned   = "PLANNED"
	QueryStatusRunning   = "RUNNING"
	QueryStatusSucceeded = "SUCCEEDED"
	QueryStatusFailed    = "FAILED"
	QueryStatusCancelled = "CANCELLED"
)

// Query maps to the `queries` table: the outcome of one realized trigger.
type Query struct {
	QueryID         int64  `gorm:"column:query_id;primaryKey;autoIncrement" json:"query_id"`
	TriggerName     string `gorm:"column:trigger_name;size:128;uniqueIndex" json:"trigger_name"`
	SurveyID        int64  `gorm:"column:survey_id;index" json:"survey_id"`
	ScheduleID      int64  `gorm:"column:schedule_id;index" json:"schedule_id"`
	QueryScheduleID int64  `gorm:"column:query_schedule_id;index" json:"query_schedule_id"`
	QueryTypeID     int64  `gorm:"column:query_type_id;index" json:"query_type_id"`
	QueryKind       string `gorm:"column:query_kind;size:32" json:"query_kind"`
	DelayHours      int    `gorm:"column:delay_hours" json:"delay_hours"`
	// PairedFollowupDelayHours is set on BaselineForecast rows; PairedQueryID
	// links a FollowUp row back to the forecast it checks.
	PairedFollowupDelayHours *int           `gorm:"column:paired_followup_delay_hours" json:"paired_followup_delay_hours"`
	PairedQueryID            *int64         `gorm:"column:paired_query_id;index" json:"paired_query_id"`
	ScheduledForUTC          time.Time      `gorm:"column:scheduled_for_utc" json:"scheduled_for_utc"`
	Status                   string         `gorm:"column:status;size:20;default:PLANNED;index" json:"status"`
	ExecutedAtUTC            *time.Time     `gorm:"column:executed_at_utc" json:"executed_at_utc"`
	ResultJSON               datatypes.JSON `gorm:"column:result_json" json:"result_json"`
	Recommendation           string         `gorm:"column:recommendation;size:10" json:"recommendation"`
	Confidence               *float64       `gorm:"column:confidence" json:"confidence"`
	Rationale                string         `gorm:"column:rationale;type:text" json:"rationale"`
	Source                   string         `gorm:"column:source;type:text" json:"source"`
	ErrorText                string         `gorm:"column:error_text;type:text" json:"error_text"`
	CreatedAt                time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Query) TableName() string {
	return "queries"
}

// Forecast maps to the `crypto_forecasts` table: one recommendation for one horizon.
type Forecast struct {
	ForecastID    int64          `gorm:"column:forecast_id;primaryKey;autoIncrement" json:"forecast_id"`
	QueryID       int64          `gorm:"column:query_id;index" json:"query_id"`
	HorizonType   string         `gorm:"column:horizon_type;size:50" json:"horizon_type"`
	ForecastValue datatypes.JSON `gorm:"column:forecast_value" json:"forecast_value"`
}

func (Forecast) TableName() string {
	return "crypto_forecasts"
}

// QueryResult is what a successful worker invocation writes back.
type QueryResult struct {
	Recommendation string
	Confidence     float64
	Rationale      string
	Source         string
	ResultJSON     datatypes.JSON
}
