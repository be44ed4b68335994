// Package recommender asks a language model provider for a Buy/Sell/Hold
// recommendation on an asset.
package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"surveyplanner/internal/pkg/httpclient"
)

// Provider selects the API dialect.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderOpenAI
	ProviderAnthropic
	ProviderGemini
	ProviderGrok
)

var ErrUnsupportedProvider = errors.New("unsupported llm provider")

// ParseProvider maps an llm_name such as "OpenAI" or "anthropic" to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "chatgpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "grok", "xai":
		return ProviderGrok, nil
	}
	return ProviderUnknown, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
}

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderGemini:
		return "Gemini"
	case ProviderGrok:
		return "Grok"
	}
	return "unknown"
}

// Request is one recommendation call. Prompt is already rendered.
type Request struct {
	AssetName string
	Prompt    string
	Model     string
}

// Recommendation is the structured answer.
type Recommendation struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Explanation    string  `json:"explanation"`
	References     string  `json:"references"`
}

type Recommender interface {
	Recommend(ctx context.Context, req Request) (Recommendation, error)
}

// Config carries per-LLM connection settings. APIURL is the provider base
// URL; empty means the public endpoint.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Factory builds a Recommender for a provider.
type Factory func(p Provider, cfg Config) (Recommender, error)

// New returns the Recommender for p.
func New(p Provider, cfg Config) (Recommender, error) {
	client := httpclient.New().WithTimeout(cfg.Timeout)
	base := strings.TrimRight(cfg.APIURL, "/")
	switch p {
	case ProviderOpenAI:
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &chatCompletions{client: client.WithBearerToken(cfg.APIKey), url: base + "/chat/completions", name: p.String()}, nil
	case ProviderGrok:
		if base == "" {
			base = "https://api.x.ai/v1"
		}
		return &chatCompletions{client: client.WithBearerToken(cfg.APIKey), url: base + "/chat/completions", name: p.String()}, nil
	case ProviderAnthropic:
		if base == "" {
			base = "https://api.anthropic.com/v1"
		}
		client.WithHeader("x-api-key", cfg.APIKey).WithHeader("anthropic-version", anthropicVersion)
		return &anthropic{client: client, url: base + "/messages"}, nil
	case ProviderGemini:
		if base == "" {
			base = "https://generativelanguage.googleapis.com/v1beta"
		}
		client.WithHeader("x-goog-api-key", cfg.APIKey)
		return &gemini{client: client, base: base}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedProvider, p)
}

const systemPrompt = "You are a helpful investment advisor. Provide a structured recommendation for the specified asset, including a buy/sell/hold recommendation, confidence level, explanation, and references."

const formatInstructions = `Respond with a JSON object in the following format:
{
    "recommendation": "Buy" | "Sell" | "Hold",
    "confidence": <float between 0.0 and 1.0>,
    "explanation": "<brief explanation>",
    "references": "<references, e.g., 'Wall Street Journal, NY Stock Exchange'>"
}
Only return the JSON object, no additional text.`

func userPrompt(req Request) string {
	prompt := strings.ReplaceAll(req.Prompt, "{asset_name}", req.AssetName)
	return prompt + "\n\n" + formatInstructions
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSON   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Parse extracts a Recommendation from model output. The JSON object may be
// wrapped in a fenced code block or surrounded by prose.
func Parse(text string) (Recommendation, error) {
	raw := ""
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if m := bareJSON.FindString(text); m != "" {
		raw = m
	}
	if raw == "" {
		return Recommendation{}, fmt.Errorf("no JSON object in response: %q", truncate(text, 200))
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Recommendation{}, fmt.Errorf("decode recommendation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(rec.Recommendation)) {
	case "buy":
		rec.Recommendation = "Buy"
	case "sell":
		rec.Recommendation = "Sell"
	case "hold":
		rec.Recommendation = "Hold"
	default:
		return Recommendation{}, fmt.Errorf("invalid recommendation %q", rec.Recommendation)
	}
	if rec.Confidence < 0 || rec.Confidence > 1 {
		return Recommendation{}, fmt.Errorf("confidence %v out of range [0,1]", rec.Confidence)
	}
	return rec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
