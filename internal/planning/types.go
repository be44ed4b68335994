package planning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// QueryKind classifies a query definition.
type QueryKind string

const (
	KindBaseline         QueryKind = "Baseline"
	KindBaselineForecast QueryKind = "BaselineForecast"
	KindFollowUp         QueryKind = "FollowUp"
)

// ParseQueryKind maps a query type name as stored in the database
// ("Baseline", "Baseline Forecast", "Follow-up", ...) to a QueryKind.
func ParseQueryKind(name string) (QueryKind, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	switch b.String() {
	case "baseline", "initialbaseline":
		return KindBaseline, nil
	case "baselineforecast", "forecast":
		return KindBaselineForecast, nil
	case "followup":
		return KindFollowUp, nil
	default:
		return "", fmt.Errorf("%w: unknown query type %q", ErrInvalidInput, name)
	}
}

// Date is a calendar date without a time or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: base date %q: %v", ErrInvalidInput, s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Tomorrow returns the UTC calendar date following now.
func Tomorrow(now time.Time) Date {
	return DateOf(now.UTC().AddDate(0, 0, 1))
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: time of day %q", ErrInvalidInput, s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// QueryDefinition is one relative-delay row of a schedule template.
type QueryDefinition struct {
	ID            int64     `json:"query_definition_id"`
	ScheduleID    int64     `json:"schedule_id"`
	Kind          QueryKind `json:"query_kind"`
	QueryTypeID   int64     `json:"query_type_id"`
	QueryTypeName string    `json:"query_type_name"`
	DelayHours    int       `json:"delay_hours"`
	// PairedFollowupDelayHours is metadata on BaselineForecast rows. It never
	// produces a trigger of its own.
	PairedFollowupDelayHours *int `json:"paired_followup_delay_hours,omitempty"`
}

// ScheduleTemplate describes when each query of a survey cycle fires,
// relative to the base instant of a run.
type ScheduleTemplate struct {
	ID          int64             `json:"schedule_id"`
	Name        string            `json:"schedule_name"`
	Version     int               `json:"schedule_version"`
	InitialTime TimeOfDay         `json:"initial_time_of_day"`
	Timezone    string            `json:"timezone"`
	Definitions []QueryDefinition `json:"definitions"`
}

// Validate checks the template invariants: no negative delays and exactly
// one Baseline at delay zero.
func (s ScheduleTemplate) Validate() error {
	baselines := 0
	for _, def := range s.Definitions {
		if def.DelayHours < 0 {
			return fmt.Errorf("%w: schedule %d definition %d has negative delay_hours %d",
				ErrInvalidInput, s.ID, def.ID, def.DelayHours)
		}
		if def.Kind != KindBaseline {
			continue
		}
		if def.DelayHours != 0 {
			return fmt.Errorf("%w: schedule %d baseline definition %d has delay_hours %d, want 0",
				ErrInvalidInput, s.ID, def.ID, def.DelayHours)
		}
		baselines++
	}
	if baselines != 1 {
		return fmt.Errorf("%w: schedule %d has %d baseline definitions, want exactly 1",
			ErrInvalidInput, s.ID, baselines)
	}
	return nil
}

// Location resolves the template timezone. An empty timezone means UTC.
func (s ScheduleTemplate) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" || strings.EqualFold(tz, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %d timezone %q: %v", ErrInvalidInput, s.ID, tz, err)
	}
	return loc, nil
}

// SurveyInstance binds an asset to a schedule and its two prompt families.
type SurveyInstance struct {
	ID               int64 `json:"survey_id"`
	AssetID          int64 `json:"asset_id"`
	ScheduleID       int64 `json:"schedule_id"`
	LivePromptID     int64 `json:"live_prompt_id"`
	ForecastPromptID int64 `json:"forecast_prompt_id"`
	IsActive         bool  `json:"is_active"`
}
