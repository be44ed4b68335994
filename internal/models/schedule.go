package models

// Schedule maps to the `schedules` table. InitialQueryTime is a wall-clock
// "HH:MM:SS" value interpreted in Timezone.
type Schedule struct {
	ScheduleID       int64  `gorm:"column:schedule_id;primaryKey;autoIncrement" json:"schedule_id"`
	ScheduleName     string `gorm:"column:schedule_name;size:255" json:"schedule_name"`
	ScheduleVersion  int    `gorm:"column:schedule_version;default:1" json:"schedule_version"`
	InitialQueryTime string `gorm:"column:initial_query_time;type:time" json:"initial_query_time"`
	Timezone         string `gorm:"column:timezone;size:64;default:UTC" json:"timezone"`
	Description      string `gorm:"column:description;type:text" json:"description"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// QueryType maps to the `query_type` table.
type QueryType struct {
	QueryTypeID   int64  `gorm:"column:query_type_id;primaryKey;autoIncrement" json:"query_type_id"`
	QueryTypeName string `gorm:"column:query_type_name;size:255;uniqueIndex" json:"query_type_name"`
	Description   string `gorm:"column:description;type:text" json:"description"`
}

func (QueryType) TableName() string {
	return "query_type"
}

// QuerySchedule maps to the `query_schedules` table: one relative-delay query
// definition of a schedule.
type QuerySchedule struct {
	QueryScheduleID          int64      `gorm:"column:query_schedule_id;primaryKey;autoIncrement" json:"query_schedule_id"`
	ScheduleID               int64      `gorm:"column:schedule_id;index" json:"schedule_id"`
	QueryTypeID              int64      `gorm:"column:query_type_id;index" json:"query_type_id"`
	DelayHours               int        `gorm:"column:delay_hours" json:"delay_hours"`
	PairedFollowupDelayHours *int       `gorm:"column:paired_followup_delay_hours" json:"paired_followup_delay_hours"`
	QueryType                *QueryType `gorm:"foreignKey:QueryTypeID;references:QueryTypeID" json:"query_type,omitempty"`
}

func (QuerySchedule) TableName() string {
	return "query_schedules"
}
