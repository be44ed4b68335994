package planning

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"surveyplanner/internal/models"
)

// Generator expands a schedule template into planned triggers. It performs
// no I/O.
type Generator struct {
	// NamePrefix prefixes trigger names. Empty means DefaultNamePrefix.
	NamePrefix string
	// UTCOnly ignores the schedule timezone and reads the initial time as UTC.
	UTCOnly bool

	log *zap.Logger
}

func NewGenerator(prefix string, utcOnly bool, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{NamePrefix: prefix, UTCOnly: utcOnly, log: log}
}

// GeneratePlan returns exactly one trigger per query definition of an active
// survey, sorted by fire time then name. Inactive surveys yield nothing.
// Invalid templates and unknown timezones fail with ErrInvalidInput.
func (g *Generator) GeneratePlan(survey SurveyInstance, schedule ScheduleTemplate, base Date, refs Refs) ([]PlannedTrigger, error) {
	if !survey.IsActive {
		return nil, nil
	}
	if base.IsZero() {
		return nil, fmt.Errorf("%w: base date is required", ErrInvalidInput)
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	loc := time.UTC
	if !g.UTCOnly {
		var err error
		if loc, err = schedule.Location(); err != nil {
			return nil, err
		}
	}

	out := make([]PlannedTrigger, 0, len(schedule.Definitions))
	for _, def := range schedule.Definitions {
		fireAt := ComputeFireAt(base, schedule.InitialTime, def.DelayHours, loc)
		name := TriggerName(g.NamePrefix, survey.ID, def.ID, fireAt)
		out = append(out, PlannedTrigger{
			Name:    name,
			FireAt:  fireAt,
			Payload: g.payload(name, fireAt, survey, schedule, def, refs),
		})
	}
	SortTriggers(out)
	return out, nil
}

// SortTriggers orders triggers by fire time, then name.
func SortTriggers(ts []PlannedTrigger) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].FireAt.Equal(ts[j].FireAt) {
			return ts[i].FireAt.Before(ts[j].FireAt)
		}
		return ts[i].Name < ts[j].Name
	})
}

func (g *Generator) payload(name string, fireAt time.Time, s SurveyInstance, tpl ScheduleTemplate, def QueryDefinition, refs Refs) Payload {
	p := Payload{
		TriggerName:       name,
		SurveyID:          s.ID,
		AssetID:           s.AssetID,
		ScheduleID:        tpl.ID,
		ScheduleName:      tpl.Name,
		QueryDefinitionID: def.ID,
		QueryTypeID:       def.QueryTypeID,
		QueryTypeName:     def.QueryTypeName,
		QueryKind:         def.Kind,
		DelayHours:        def.DelayHours,
		FireAtUTC:         fireAt.UTC().Format(time.RFC3339),
	}
	if def.Kind == KindBaselineForecast && def.PairedFollowupDelayHours != nil {
		hours := *def.PairedFollowupDelayHours
		p.PairedFollowupDelayHours = &hours
	}
	if refs.Asset != nil {
		p.AssetName = strPtr(refs.Asset.AssetName)
		p.AssetSymbol = strPtr(refs.Asset.AssetSymbol)
	}

	prompt := refs.LivePrompt
	if def.Kind == KindBaselineForecast {
		prompt = refs.ForecastPrompt
	}
	if prompt == nil {
		return p
	}
	p.PromptID = int64Ptr(prompt.PromptID)
	p.PromptType = strPtr(prompt.PromptType)
	p.PromptVersion = intPtr(prompt.PromptVersion)

	modelID := prompt.LLMID
	if def.Kind == KindFollowUp && prompt.FollowupLLMID != 0 {
		modelID = prompt.FollowupLLMID
	}
	if modelID != 0 {
		p.TargetModelID = int64Ptr(modelID)
	}
	if llm := refs.LLMs[modelID]; llm != nil {
		p.TargetModelName = strPtr(llm.LLMModel)
		p.TargetModelProvider = strPtr(llm.LLMName)
	}

	text, missing := RenderPrompt(prompt.PromptText, promptFields(p, prompt))
	if missing != "" {
		g.log.Warn("prompt placeholder has no value, keeping raw text",
			zap.String("trigger", name),
			zap.Int64("prompt_id", prompt.PromptID),
			zap.String("placeholder", missing))
	}
	p.PromptText = strPtr(text)
	return p
}

func promptFields(p Payload, prompt *models.Prompt) map[string]string {
	f := p.Fields()
	for key, v := range map[string]string{
		"attribute_1": prompt.Attribute1,
		"attribute_2": prompt.Attribute2,
		"attribute_3": prompt.Attribute3,
	} {
		if v != "" {
			f[key] = v
		}
	}
	return f
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
