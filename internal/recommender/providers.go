package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"surveyplanner/internal/pkg/httpclient"
)

const anthropicVersion = "2023-06-01"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletions speaks the OpenAI chat completions dialect, which Grok
// also serves.
type chatCompletions struct {
	client *httpclient.Client
	url    string
	name   string
}

func (c *chatCompletions) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	body := map[string]interface{}{
		"model": req.Model,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	raw, err := c.client.PostJSON(ctx, c.url, body)
	if err != nil {
		return Recommendation{}, fmt.Errorf("%s: %w", c.name, err)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Recommendation{}, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return Recommendation{}, fmt.Errorf("%s: empty response", c.name)
	}
	rec, err := Parse(resp.Choices[0].Message.Content)
	if err != nil {
		return Recommendation{}, fmt.Errorf("%s: %w", c.name, err)
	}
	return rec, nil
}

type anthropic struct {
	client *httpclient.Client
	url    string
}

func (a *anthropic) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	body := map[string]interface{}{
		"model":      req.Model,
		"max_tokens": 1000,
		"system":     systemPrompt,
		"messages":   []chatMessage{{Role: "user", Content: userPrompt(req)}},
	}
	raw, err := a.client.PostJSON(ctx, a.url, body)
	if err != nil {
		return Recommendation{}, fmt.Errorf("Anthropic: %w", err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Recommendation{}, fmt.Errorf("Anthropic: decode response: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	rec, err := Parse(text.String())
	if err != nil {
		return Recommendation{}, fmt.Errorf("Anthropic: %w", err)
	}
	return rec, nil
}

type gemini struct {
	client *httpclient.Client
	base   string
}

func (g *gemini) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	body := map[string]interface{}{
		"systemInstruction": content{Parts: []part{{Text: systemPrompt}}},
		"contents":          []content{{Role: "user", Parts: []part{{Text: userPrompt(req)}}}},
		"generationConfig":  map[string]string{"responseMimeType": "application/json"},
	}
	url := g.base + "/models/" + req.Model + ":generateContent"
	raw, err := g.client.PostJSON(ctx, url, body)
	if err != nil {
		return Recommendation{}, fmt.Errorf("Gemini: %w", err)
	}

	var resp struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Recommendation{}, fmt.Errorf("Gemini: decode response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Recommendation{}, fmt.Errorf("Gemini: empty response")
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	rec, err := Parse(text.String())
	if err != nil {
		return Recommendation{}, fmt.Errorf("Gemini: %w", err)
	}
	return rec, nil
}
