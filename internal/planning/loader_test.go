package planning

import (
	"context"
	"errors"
	"testing"

	"surveyplanner/internal/models"
)

func TestLoaderScheduleNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(newFakeSource()).Schedule(context.Background(), 42)
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("Schedule(42) error = %v, want ErrScheduleNotFound", err)
	}
}

func TestLoaderLoad(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	delete(src.llms, 2)
	l := NewLoader(src)

	b, err := l.Load(context.Background(), SurveyFromModel(src.surveys[0]))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if b.Schedule.Name != "daily-crypto" || len(b.Schedule.Definitions) != 3 {
		t.Fatalf("schedule = %+v", b.Schedule)
	}
	if b.Schedule.Definitions[1].Kind != KindBaselineForecast || *b.Schedule.Definitions[1].PairedFollowupDelayHours != 24 {
		t.Fatalf("definition = %+v", b.Schedule.Definitions[1])
	}
	if b.Refs.Asset == nil || b.Refs.LivePrompt == nil || b.Refs.ForecastPrompt == nil {
		t.Fatalf("refs = %+v", b.Refs)
	}
	if len(b.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want the missing followup llm", b.Warnings)
	}
}

func TestTemplateFromModelsRejectsBadRows(t *testing.T) {
	t.Parallel()

	s := models.Schedule{ScheduleID: 1, InitialQueryTime: "01:00:00"}
	if _, err := TemplateFromModels(s, []models.QuerySchedule{{QueryScheduleID: 5, QueryTypeID: 9}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing query type error = %v, want ErrInvalidInput", err)
	}
	s.InitialQueryTime = "soon"
	if _, err := TemplateFromModels(s, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad time error = %v, want ErrInvalidInput", err)
	}
}
