// Package worker executes fired triggers: it records a Query row, asks the
// configured model for a recommendation and stores the forecast.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"surveyplanner/internal/models"
	"surveyplanner/internal/planning"
	"surveyplanner/internal/recommender"
)

var (
	ErrInvalidPayload = errors.New("invalid trigger payload")
	ErrNoTargetModel  = errors.New("payload has no target model")
)

// QueryStore persists query executions.
type QueryStore interface {
	Start(ctx context.Context, q *models.Query) (*models.Query, bool, error)
	MarkSucceeded(ctx context.Context, queryID int64, res models.QueryResult, forecast *models.Forecast) error
	MarkFailed(ctx context.Context, queryID int64, errMsg string) error
	FindPairedForecast(ctx context.Context, surveyID int64, followUpAt time.Time) (*models.Query, error)
	LLMByID(ctx context.Context, id int64) (*models.LLM, error)
}

// Outcome describes what one invocation did.
type Outcome struct {
	QueryID        int64                       `json:"query_id"`
	TriggerName    string                      `json:"trigger_name"`
	Status         string                      `json:"status"`
	Duplicate      bool                        `json:"duplicate"`
	PairedQueryID  *int64                      `json:"paired_query_id,omitempty"`
	Recommendation *recommender.Recommendation `json:"recommendation,omitempty"`
}

type Handler struct {
	store   QueryStore
	factory recommender.Factory
	secret  func(name string) string
	timeout time.Duration
	log     *zap.Logger
}

// NewHandler wires the worker. secret resolves an LLM's api_key_secret
// reference to the key.
func NewHandler(store QueryStore, factory recommender.Factory, secret func(string) string, timeout time.Duration, log *zap.Logger) *Handler {
	if factory == nil {
		factory = recommender.New
	}
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{store: store, factory: factory, secret: secret, timeout: timeout, log: log}
}

// Handle runs the query described by p. A delivery for a trigger that is
// already running or finished returns Duplicate without calling the model.
func (h *Handler) Handle(ctx context.Context, p planning.Payload) (Outcome, error) {
	out := Outcome{TriggerName: p.TriggerName}
	fireAt, err := validate(p)
	if err != nil {
		return out, err
	}
	log := h.log.With(zap.String("trigger", p.TriggerName), zap.Int64("survey_id", p.SurveyID))

	q := &models.Query{
		TriggerName:              p.TriggerName,
		SurveyID:                 p.SurveyID,
		ScheduleID:               p.ScheduleID,
		QueryScheduleID:          p.QueryDefinitionID,
		QueryTypeID:              p.QueryTypeID,
		QueryKind:                string(p.QueryKind),
		DelayHours:               p.DelayHours,
		PairedFollowupDelayHours: p.PairedFollowupDelayHours,
		ScheduledForUTC:          fireAt,
	}
	if p.QueryKind == planning.KindFollowUp {
		paired, err := h.store.FindPairedForecast(ctx, p.SurveyID, fireAt)
		if err != nil {
			return out, fmt.Errorf("find paired forecast: %w", err)
		}
		if paired != nil {
			q.PairedQueryID = &paired.QueryID
		}
	}

	row, started, err := h.store.Start(ctx, q)
	if err != nil {
		return out, fmt.Errorf("start query: %w", err)
	}
	out.QueryID = row.QueryID
	out.Status = row.Status
	out.PairedQueryID = row.PairedQueryID
	if !started {
		out.Duplicate = true
		log.Info("trigger already handled", zap.Int64("query_id", row.QueryID), zap.String("status", row.Status))
		return out, nil
	}

	rec, err := h.recommend(ctx, p)
	if err != nil {
		out.Status = h.fail(ctx, log, row.QueryID, err)
		return out, err
	}

	// the model has answered; storing it must not depend on the delivery
	// connection staying open
	storeCtx := context.WithoutCancel(ctx)
	raw, err := json.Marshal(rec)
	if err != nil {
		err = fmt.Errorf("marshal recommendation: %w", err)
		out.Status = h.fail(storeCtx, log, row.QueryID, err)
		return out, err
	}
	res := models.QueryResult{
		Recommendation: rec.Recommendation,
		Confidence:     rec.Confidence,
		Rationale:      rec.Explanation,
		Source:         rec.References,
		ResultJSON:     raw,
	}
	forecast := &models.Forecast{HorizonType: Horizon(p), ForecastValue: raw}
	if err := h.store.MarkSucceeded(storeCtx, row.QueryID, res, forecast); err != nil {
		err = fmt.Errorf("store result: %w", err)
		out.Status = h.fail(storeCtx, log, row.QueryID, err)
		return out, err
	}

	out.Status = models.QueryStatusSucceeded
	out.Recommendation = &rec
	log.Info("query succeeded",
		zap.Int64("query_id", row.QueryID),
		zap.String("recommendation", rec.Recommendation),
		zap.Float64("confidence", rec.Confidence))
	return out, nil
}

// fail marks the query FAILED so a redelivery runs it again.
func (h *Handler) fail(ctx context.Context, log *zap.Logger, queryID int64, cause error) string {
	if err := h.store.MarkFailed(context.WithoutCancel(ctx), queryID, cause.Error()); err != nil {
		log.Error("mark query failed", zap.Int64("query_id", queryID), zap.Error(err))
		return models.QueryStatusRunning
	}
	log.Warn("query failed", zap.Int64("query_id", queryID), zap.Error(cause))
	return models.QueryStatusFailed
}

func (h *Handler) recommend(ctx context.Context, p planning.Payload) (recommender.Recommendation, error) {
	if p.TargetModelProvider == nil || p.TargetModelName == nil {
		return recommender.Recommendation{}, ErrNoTargetModel
	}
	if p.PromptText == nil {
		return recommender.Recommendation{}, fmt.Errorf("%w: missing prompt_text", ErrInvalidPayload)
	}
	provider, err := recommender.ParseProvider(*p.TargetModelProvider)
	if err != nil {
		return recommender.Recommendation{}, err
	}

	cfg := recommender.Config{Timeout: h.timeout}
	if p.TargetModelID != nil {
		llm, err := h.store.LLMByID(ctx, *p.TargetModelID)
		if err != nil {
			return recommender.Recommendation{}, fmt.Errorf("load llm %d: %w", *p.TargetModelID, err)
		}
		if llm != nil {
			cfg.APIURL = llm.APIURL
			if h.secret != nil {
				cfg.APIKey = h.secret(llm.APIKeySecret)
			}
		}
	}
	r, err := h.factory(provider, cfg)
	if err != nil {
		return recommender.Recommendation{}, err
	}

	prompt, missing := planning.RenderPrompt(*p.PromptText, p.Fields())
	if missing != "" {
		h.log.Warn("prompt placeholder has no value, sending raw text",
			zap.String("trigger", p.TriggerName), zap.String("placeholder", missing))
	}
	asset := ""
	if p.AssetName != nil {
		asset = *p.AssetName
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return r.Recommend(callCtx, recommender.Request{AssetName: asset, Prompt: prompt, Model: *p.TargetModelName})
}

// Horizon labels the forecast row: "baseline" for a Baseline query, the
// forecast horizon in hours ("24h") for a BaselineForecast and
// "followup-24h" for a FollowUp.
func Horizon(p planning.Payload) string {
	switch p.QueryKind {
	case planning.KindBaselineForecast:
		n := p.DelayHours
		if p.PairedFollowupDelayHours != nil {
			n = *p.PairedFollowupDelayHours
		}
		return strconv.Itoa(n) + "h"
	case planning.KindFollowUp:
		return "followup-" + strconv.Itoa(p.DelayHours) + "h"
	default:
		return "baseline"
	}
}

func validate(p planning.Payload) (time.Time, error) {
	if p.TriggerName == "" {
		return time.Time{}, fmt.Errorf("%w: missing trigger_name", ErrInvalidPayload)
	}
	if p.SurveyID <= 0 {
		return time.Time{}, fmt.Errorf("%w: survey_id must be positive", ErrInvalidPayload)
	}
	switch p.QueryKind {
	case planning.KindBaseline, planning.KindBaselineForecast, planning.KindFollowUp:
	default:
		return time.Time{}, fmt.Errorf("%w: unknown query_kind %q", ErrInvalidPayload, p.QueryKind)
	}
	fireAt, err := p.FireAt()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: fire_at_utc: %v", ErrInvalidPayload, err)
	}
	return fireAt.UTC(), nil
}
