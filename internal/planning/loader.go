package planning

import (
	"context"
	"fmt"
	"sync"

	"surveyplanner/internal/models"
)

// Source is the read-only data source behind planning. Lookups of an absent
// row return (nil, nil).
type Source interface {
	ActiveSurveys(ctx context.Context) ([]models.Survey, error)
	ScheduleByID(ctx context.Context, id int64) (*models.Schedule, error)
	// QueryDefinitionsBySchedule returns the rows with QueryType preloaded.
	QueryDefinitionsBySchedule(ctx context.Context, scheduleID int64) ([]models.QuerySchedule, error)
	PromptByID(ctx context.Context, id int64) (*models.Prompt, error)
	LLMByID(ctx context.Context, id int64) (*models.LLM, error)
	AssetByID(ctx context.Context, id int64) (*models.Asset, error)
}

// Refs holds the records a survey's payloads are built from. Any of them may
// be missing.
type Refs struct {
	Asset          *models.Asset
	LivePrompt     *models.Prompt
	ForecastPrompt *models.Prompt
	LLMs           map[int64]*models.LLM
}

// Bundle is everything the generator needs for one survey.
type Bundle struct {
	Survey   SurveyInstance
	Schedule ScheduleTemplate
	Refs     Refs
	Warnings []string
}

type scheduleEntry struct {
	ready chan struct{}
	tpl   ScheduleTemplate
	err   error
}

// Loader reads schedule templates and survey references. Templates and LLM
// rows are cached for the lifetime of the loader, so one loader serves one
// run.
type Loader struct {
	src Source

	mu        sync.Mutex
	schedules map[int64]*scheduleEntry
	llms      map[int64]*models.LLM
}

func NewLoader(src Source) *Loader {
	return &Loader{
		src:       src,
		schedules: make(map[int64]*scheduleEntry),
		llms:      make(map[int64]*models.LLM),
	}
}

// SurveyFromModel converts a survey row.
func SurveyFromModel(s models.Survey) SurveyInstance {
	return SurveyInstance{
		ID:               s.SurveyID,
		AssetID:          s.AssetID,
		ScheduleID:       s.ScheduleID,
		LivePromptID:     s.LivePromptID,
		ForecastPromptID: s.ForecastPromptID,
		IsActive:         s.IsActive,
	}
}

// Schedule loads and converts a schedule template. A missing schedule
// returns ErrScheduleNotFound; a row that cannot be interpreted returns
// ErrInvalidInput.
func (l *Loader) Schedule(ctx context.Context, id int64) (ScheduleTemplate, error) {
	l.mu.Lock()
	if e, ok := l.schedules[id]; ok {
		l.mu.Unlock()
		select {
		case <-e.ready:
			return e.tpl, e.err
		case <-ctx.Done():
			return ScheduleTemplate{}, ctx.Err()
		}
	}
	e := &scheduleEntry{ready: make(chan struct{})}
	l.schedules[id] = e
	l.mu.Unlock()

	e.tpl, e.err = l.loadSchedule(ctx, id)
	close(e.ready)
	return e.tpl, e.err
}

func (l *Loader) loadSchedule(ctx context.Context, id int64) (ScheduleTemplate, error) {
	row, err := l.src.ScheduleByID(ctx, id)
	if err != nil {
		return ScheduleTemplate{}, fmt.Errorf("load schedule %d: %w", id, err)
	}
	if row == nil {
		return ScheduleTemplate{}, fmt.Errorf("%w: %d", ErrScheduleNotFound, id)
	}
	defs, err := l.src.QueryDefinitionsBySchedule(ctx, id)
	if err != nil {
		return ScheduleTemplate{}, fmt.Errorf("load query definitions of schedule %d: %w", id, err)
	}
	return TemplateFromModels(*row, defs)
}

// TemplateFromModels converts a schedule row and its query definitions.
func TemplateFromModels(s models.Schedule, defs []models.QuerySchedule) (ScheduleTemplate, error) {
	tod, err := ParseTimeOfDay(s.InitialQueryTime)
	if err != nil {
		return ScheduleTemplate{}, fmt.Errorf("schedule %d: %w", s.ScheduleID, err)
	}
	tpl := ScheduleTemplate{
		ID:          s.ScheduleID,
		Name:        s.ScheduleName,
		Version:     s.ScheduleVersion,
		InitialTime: tod,
		Timezone:    s.Timezone,
		Definitions: make([]QueryDefinition, 0, len(defs)),
	}
	for _, d := range defs {
		if d.QueryType == nil {
			return ScheduleTemplate{}, fmt.Errorf("%w: schedule %d definition %d references missing query type %d",
				ErrInvalidInput, s.ScheduleID, d.QueryScheduleID, d.QueryTypeID)
		}
		kind, err := ParseQueryKind(d.QueryType.QueryTypeName)
		if err != nil {
			return ScheduleTemplate{}, fmt.Errorf("schedule %d definition %d: %w", s.ScheduleID, d.QueryScheduleID, err)
		}
		tpl.Definitions = append(tpl.Definitions, QueryDefinition{
			ID:                       d.QueryScheduleID,
			ScheduleID:               d.ScheduleID,
			Kind:                     kind,
			QueryTypeID:              d.QueryTypeID,
			QueryTypeName:            d.QueryType.QueryTypeName,
			DelayHours:               d.DelayHours,
			PairedFollowupDelayHours: d.PairedFollowupDelayHours,
		})
	}
	return tpl, nil
}

// Load assembles the bundle for one survey. Missing asset, prompt or LLM
// rows are reported as warnings and leave the matching Refs field nil.
func (l *Loader) Load(ctx context.Context, s SurveyInstance) (*Bundle, error) {
	tpl, err := l.Schedule(ctx, s.ScheduleID)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Survey: s, Schedule: tpl, Refs: Refs{LLMs: make(map[int64]*models.LLM)}}

	if b.Refs.Asset, err = l.src.AssetByID(ctx, s.AssetID); err != nil {
		return nil, fmt.Errorf("load asset %d: %w", s.AssetID, err)
	}
	if b.Refs.Asset == nil {
		b.warnf("survey %d: asset %d not found", s.ID, s.AssetID)
	}

	if b.Refs.LivePrompt, err = l.prompt(ctx, b, "live", s.LivePromptID); err != nil {
		return nil, err
	}
	if b.Refs.ForecastPrompt, err = l.prompt(ctx, b, "forecast", s.ForecastPromptID); err != nil {
		return nil, err
	}

	for _, p := range []*models.Prompt{b.Refs.LivePrompt, b.Refs.ForecastPrompt} {
		if p == nil {
			continue
		}
		for _, id := range []int64{p.LLMID, p.FollowupLLMID} {
			if id == 0 {
				continue
			}
			if _, seen := b.Refs.LLMs[id]; seen {
				continue
			}
			llm, err := l.llm(ctx, id)
			if err != nil {
				return nil, err
			}
			if llm == nil {
				b.warnf("survey %d: llm %d referenced by prompt %d not found", s.ID, id, p.PromptID)
			}
			b.Refs.LLMs[id] = llm
		}
	}
	return b, nil
}

func (l *Loader) prompt(ctx context.Context, b *Bundle, family string, id int64) (*models.Prompt, error) {
	p, err := l.src.PromptByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s prompt %d: %w", family, id, err)
	}
	if p == nil {
		b.warnf("survey %d: %s prompt %d not found", b.Survey.ID, family, id)
	}
	return p, nil
}

func (l *Loader) llm(ctx context.Context, id int64) (*models.LLM, error) {
	l.mu.Lock()
	cached, ok := l.llms[id]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}
	llm, err := l.src.LLMByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load llm %d: %w", id, err)
	}
	l.mu.Lock()
	l.llms[id] = llm
	l.mu.Unlock()
	return llm, nil
}

func (b *Bundle) warnf(format string, args ...interface{}) {
	b.Warnings = append(b.Warnings, fmt.Sprintf(format, args...))
}
