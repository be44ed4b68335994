package models

import "time"

// SurveyRun is one forecast row of a survey joined with the query that
// produced it.
type SurveyRun struct {
	QueryID         int64      `gorm:"column:query_id" json:"query_id"`
	QueryKind       string     `gorm:"column:query_kind" json:"query_kind"`
	QueryTypeID     int64      `gorm:"column:query_type_id" json:"query_type_id"`
	PairedQueryID   *int64     `gorm:"column:paired_query_id" json:"paired_query_id"`
	HorizonType     string     `gorm:"column:horizon_type" json:"horizon_type"`
	Recommendation  string     `gorm:"column:recommendation" json:"recommendation"`
	Confidence      *float64   `gorm:"column:confidence" json:"confidence"`
	Rationale       string     `gorm:"column:rationale" json:"rationale"`
	ScheduledForUTC time.Time  `gorm:"column:scheduled_for_utc" json:"scheduled_for_utc"`
	ExecutedAtUTC   *time.Time `gorm:"column:executed_at_utc" json:"executed_at_utc"`
}

// RunReport lists a survey's completed runs. ExpectedQueries is the number
// of queries one planning day produces for the survey's schedule.
type RunReport struct {
	SurveyID        int64       `json:"survey_id"`
	TotalQueries    int64       `json:"total_queries"`
	ExpectedQueries int64       `json:"expected_queries"`
	Runs            []SurveyRun `json:"runs"`
}

// HorizonComparison sets a forecast next to the follow-up that checks it.
type HorizonComparison struct {
	HorizonType       string     `json:"horizon_type"`
	ForecastQueryID   int64      `json:"forecast_query_id"`
	InitialPrediction string     `json:"initial_prediction"`
	InitialTimestamp  time.Time  `json:"initial_timestamp"`
	FollowUpQueryID   *int64     `json:"follow_up_query_id"`
	FollowUpActual    string     `json:"follow_up_actual"`
	FollowUpTimestamp *time.Time `json:"follow_up_timestamp"`
	// Match is nil until the follow-up has an answer.
	Match *bool `json:"match"`
}
