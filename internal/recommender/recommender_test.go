package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Provider
	}{
		{"OpenAI", ProviderOpenAI},
		{" anthropic ", ProviderAnthropic},
		{"Gemini", ProviderGemini},
		{"GROK", ProviderGrok},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseProvider(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseProvider("Mistral"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("ParseProvider(Mistral) err = %v", err)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"plain", `{"recommendation":"Buy","confidence":0.7,"explanation":"e","references":"r"}`, "Buy", false},
		{"fenced", "```json\n{\"recommendation\":\"sell\",\"confidence\":0.2,\"explanation\":\"e\",\"references\":\"r\"}\n```", "Sell", false},
		{"prose", `Here you go: {"recommendation":"HOLD","confidence":1,"explanation":"e","references":"r"} thanks`, "Hold", false},
		{"no json", "I cannot answer that.", "", true},
		{"bad value", `{"recommendation":"Short","confidence":0.5}`, "", true},
		{"confidence out of range", `{"recommendation":"Buy","confidence":1.5}`, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse err = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Recommendation != tt.want {
				t.Fatalf("Recommendation = %q, want %q", got.Recommendation, tt.want)
			}
		})
	}
}

const answer = `{"recommendation":"Buy","confidence":0.8,"explanation":"momentum","references":"WSJ"}`

func TestProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider Provider
		path     string
		header   string
		value    string
		response func() interface{}
	}{
		{ProviderOpenAI, "/chat/completions", "Authorization", "Bearer k", func() interface{} {
			return map[string]interface{}{"choices": []interface{}{map[string]interface{}{"message": map[string]string{"content": answer}}}}
		}},
		{ProviderGrok, "/chat/completions", "Authorization", "Bearer k", func() interface{} {
			return map[string]interface{}{"choices": []interface{}{map[string]interface{}{"message": map[string]string{"content": answer}}}}
		}},
		{ProviderAnthropic, "/messages", "x-api-key", "k", func() interface{} {
			return map[string]interface{}{"content": []interface{}{map[string]string{"type": "text", "text": answer}}}
		}},
		{ProviderGemini, "/models/m-1:generateContent", "x-goog-api-key", "k", func() interface{} {
			return map[string]interface{}{"candidates": []interface{}{map[string]interface{}{
				"content": map[string]interface{}{"parts": []interface{}{map[string]string{"text": "```json\n" + answer + "\n```"}}},
			}}}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.provider.String(), func(t *testing.T) {
			t.Parallel()

			var gotBody string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("path = %s, want %s", r.URL.Path, tt.path)
				}
				if got := r.Header.Get(tt.header); got != tt.value {
					t.Errorf("%s = %q, want %q", tt.header, got, tt.value)
				}
				b, _ := io.ReadAll(r.Body)
				gotBody = string(b)
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(tt.response())
			}))
			defer srv.Close()

			rec, err := New(tt.provider, Config{APIURL: srv.URL, APIKey: "k"})
			if err != nil {
				t.Fatal(err)
			}
			got, err := rec.Recommend(context.Background(), Request{AssetName: "Bitcoin", Prompt: "Assess {asset_name}", Model: "m-1"})
			if err != nil {
				t.Fatal(err)
			}
			if got.Recommendation != "Buy" || got.Confidence != 0.8 || got.References != "WSJ" {
				t.Fatalf("got %+v", got)
			}
			if !strings.Contains(gotBody, "Assess Bitcoin") {
				t.Fatalf("request body missing rendered prompt: %s", gotBody)
			}
		})
	}
}

func TestProviderErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec, err := New(ProviderOpenAI, Config{APIURL: srv.URL, APIKey: "bad"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Recommend(context.Background(), Request{Model: "m"}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want status 401", err)
	}
}
