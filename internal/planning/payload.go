package planning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"surveyplanner/internal/trigger"
)

// Payload is the JSON document handed to the worker for one trigger.
// Pointer fields are null when the referenced record is missing.
type Payload struct {
	TriggerName       string    `json:"trigger_name"`
	SurveyID          int64     `json:"survey_id"`
	AssetID           int64     `json:"asset_id"`
	AssetName         *string   `json:"asset_name"`
	AssetSymbol       *string   `json:"asset_symbol"`
	ScheduleID        int64     `json:"schedule_id"`
	ScheduleName      string    `json:"schedule_name"`
	QueryDefinitionID int64     `json:"query_definition_id"`
	QueryTypeID       int64     `json:"query_type_id"`
	QueryTypeName     string    `json:"query_type_name"`
	QueryKind         QueryKind `json:"query_kind"`
	DelayHours        int       `json:"delay_hours"`

	PromptID      *int64  `json:"prompt_id"`
	PromptText    *string `json:"prompt_text"`
	PromptType    *string `json:"prompt_type"`
	PromptVersion *int    `json:"prompt_version"`

	TargetModelID       *int64  `json:"target_model_id"`
	TargetModelName     *string `json:"target_model_name"`
	TargetModelProvider *string `json:"target_model_provider"`

	FireAtUTC                string `json:"fire_at_utc"`
	PairedFollowupDelayHours *int   `json:"paired_followup_delay_hours,omitempty"`
}

// FireAt parses FireAtUTC.
func (p Payload) FireAt() (time.Time, error) {
	return time.Parse(time.RFC3339, p.FireAtUTC)
}

// Fields returns the scalar payload values usable as prompt placeholders.
// Null fields are omitted.
func (p Payload) Fields() map[string]string {
	f := map[string]string{
		"trigger_name":        p.TriggerName,
		"survey_id":           strconv.FormatInt(p.SurveyID, 10),
		"asset_id":            strconv.FormatInt(p.AssetID, 10),
		"schedule_id":         strconv.FormatInt(p.ScheduleID, 10),
		"schedule_name":       p.ScheduleName,
		"query_definition_id": strconv.FormatInt(p.QueryDefinitionID, 10),
		"query_type_id":       strconv.FormatInt(p.QueryTypeID, 10),
		"query_type_name":     p.QueryTypeName,
		"query_kind":          string(p.QueryKind),
		"delay_hours":         strconv.Itoa(p.DelayHours),
		"fire_at_utc":         p.FireAtUTC,
	}
	putString(f, "asset_name", p.AssetName)
	putString(f, "asset_symbol", p.AssetSymbol)
	putString(f, "prompt_type", p.PromptType)
	putString(f, "target_model_name", p.TargetModelName)
	putString(f, "target_model_provider", p.TargetModelProvider)
	if p.PromptID != nil {
		f["prompt_id"] = strconv.FormatInt(*p.PromptID, 10)
	}
	if p.TargetModelID != nil {
		f["target_model_id"] = strconv.FormatInt(*p.TargetModelID, 10)
	}
	if p.PairedFollowupDelayHours != nil {
		f["paired_followup_delay_hours"] = strconv.Itoa(*p.PairedFollowupDelayHours)
	}
	return f
}

func putString(m map[string]string, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

// PlannedTrigger is one dispatch request produced by the generator.
type PlannedTrigger struct {
	Name    string    `json:"trigger_name"`
	FireAt  time.Time `json:"fire_at"`
	Payload Payload   `json:"payload"`
}

// Spec converts the planned trigger into a substrate request.
func (t PlannedTrigger) Spec(group, target string) (trigger.Spec, error) {
	raw, err := json.Marshal(t.Payload)
	if err != nil {
		return trigger.Spec{}, fmt.Errorf("marshal payload for %s: %w", t.Name, err)
	}
	symbol := "unknown"
	if t.Payload.AssetSymbol != nil {
		symbol = *t.Payload.AssetSymbol
	}
	return trigger.Spec{
		Name:        t.Name,
		Group:       group,
		FireAt:      t.FireAt,
		Target:      target,
		Payload:     raw,
		Description: fmt.Sprintf("Crypto forecast query for %s - %s", symbol, t.Payload.QueryTypeName),
	}, nil
}
