package planning

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseQueryKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    QueryKind
		wantErr bool
	}{
		{name: "Baseline", want: KindBaseline},
		{name: "Initial Baseline", want: KindBaseline},
		{name: "Baseline Forecast", want: KindBaselineForecast},
		{name: "baseline_forecast", want: KindBaselineForecast},
		{name: "Follow-up", want: KindFollowUp},
		{name: "FollowUp", want: KindFollowUp},
		{name: "Retrospective", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseQueryKind(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("ParseQueryKind(%q) error = %v, want ErrInvalidInput", tt.name, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseQueryKind(%q) = %q, %v, want %q", tt.name, got, err, tt.want)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]TimeOfDay{
		"01:00:00": {Hour: 1},
		"13:45":    {Hour: 13, Minute: 45},
		"23:59:30": {Hour: 23, Minute: 59, Second: 30},
	} {
		got, err := ParseTimeOfDay(in)
		if err != nil || got != want {
			t.Fatalf("ParseTimeOfDay(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseTimeOfDay("25:00"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ParseTimeOfDay(25:00) error = %v, want ErrInvalidInput", err)
	}
}

func TestScheduleTemplateJSONCarriesTimeOfDay(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(ScheduleTemplate{ID: 3, InitialTime: TimeOfDay{Hour: 1, Minute: 30}, Timezone: "UTC"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"initial_time_of_day":"01:30:00"`) {
		t.Fatalf("json = %s", raw)
	}

	var back ScheduleTemplate
	if err := json.Unmarshal(raw, &back); err != nil || back.InitialTime != (TimeOfDay{Hour: 1, Minute: 30}) {
		t.Fatalf("round trip = %+v, %v", back.InitialTime, err)
	}
	if err := json.Unmarshal([]byte(`{"initial_time_of_day":"noon"}`), &back); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad time of day error = %v, want ErrInvalidInput", err)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2025-01-10")
	if err != nil || d.String() != "2025-01-10" {
		t.Fatalf("ParseDate = %v, %v", d, err)
	}
	if _, err := ParseDate("10/01/2025"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malformed base date error = %v, want ErrInvalidInput", err)
	}
}

func TestScheduleTemplateValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		defs    []QueryDefinition
		wantErr bool
	}{
		{
			name: "valid",
			defs: []QueryDefinition{{ID: 1, Kind: KindBaseline}, {ID: 2, Kind: KindFollowUp, DelayHours: 24}},
		},
		{
			name:    "no baseline",
			defs:    []QueryDefinition{{ID: 1, Kind: KindFollowUp, DelayHours: 24}},
			wantErr: true,
		},
		{
			name:    "two baselines",
			defs:    []QueryDefinition{{ID: 1, Kind: KindBaseline}, {ID: 2, Kind: KindBaseline}},
			wantErr: true,
		},
		{
			name:    "delayed baseline",
			defs:    []QueryDefinition{{ID: 1, Kind: KindBaseline, DelayHours: 2}},
			wantErr: true,
		},
		{
			name:    "negative delay",
			defs:    []QueryDefinition{{ID: 1, Kind: KindBaseline}, {ID: 2, Kind: KindFollowUp, DelayHours: -1}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ScheduleTemplate{ID: 7, Definitions: tt.defs}.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"asset_name": "Bitcoin", "asset_symbol": "BTC"}

	got, missing := RenderPrompt("Should I buy {asset_name} ({asset_symbol})?", fields)
	if got != "Should I buy Bitcoin (BTC)?" || missing != "" {
		t.Fatalf("RenderPrompt = %q, %q", got, missing)
	}

	raw := "Forecast {asset_symbol} over {horizon}"
	got, missing = RenderPrompt(raw, fields)
	if got != raw || missing != "horizon" {
		t.Fatalf("RenderPrompt with missing key = %q, %q; want raw text", got, missing)
	}

	jsonHint := `Answer as {"recommendation": "BUY"} for {asset_symbol}`
	got, _ = RenderPrompt(jsonHint, fields)
	if got != `Answer as {"recommendation": "BUY"} for BTC` {
		t.Fatalf("RenderPrompt touched literal braces: %q", got)
	}
}
