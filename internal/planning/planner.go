package planning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"surveyplanner/internal/trigger"
)

// TriggerDispatcher realizes specs in a substrate group.
type TriggerDispatcher interface {
	Dispatch(ctx context.Context, specs []trigger.Spec, group string) trigger.DispatchReport
}

// TriggerReconciler compares planned names with a substrate group.
type TriggerReconciler interface {
	Reconcile(ctx context.Context, planned []string, group string) (trigger.ReconcileReport, error)
}

// Notifier receives every finished run report.
type Notifier interface {
	RunFinished(ctx context.Context, report RunReport)
}

// SurveySummary describes what was planned for one survey.
type SurveySummary struct {
	SurveyID     int64  `json:"survey_id"`
	AssetSymbol  string `json:"asset_symbol"`
	ScheduleName string `json:"schedule_name"`
	QueryCount   int    `json:"query_count"`
}

// SkippedSurvey records a survey that produced no triggers and why.
type SkippedSurvey struct {
	SurveyID   int64  `json:"survey_id"`
	ScheduleID int64  `json:"schedule_id"`
	Reason     string `json:"reason"`
}

// Plan is the dispatch-free result of planning one base date.
type Plan struct {
	BaseDate          Date             `json:"base_date"`
	SurveysConsidered int              `json:"surveys_considered"`
	Surveys           []SurveySummary  `json:"surveys"`
	Skipped           []SkippedSurvey  `json:"skipped"`
	Warnings          []string         `json:"warnings"`
	Triggers          []PlannedTrigger `json:"triggers"`
}

// Names returns the trigger names of the plan in plan order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.Triggers))
	for i, t := range p.Triggers {
		out[i] = t.Name
	}
	return out
}

// RepairReport is filled when a run re-dispatches triggers found missing
// after the main dispatch.
type RepairReport struct {
	Missing    []string                `json:"missing"`
	Unexpected []string                `json:"unexpected"`
	Dispatch   *trigger.DispatchReport `json:"dispatch,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// RunReport is always returned by Run, whatever failed along the way.
type RunReport struct {
	RunID             string                 `json:"run_id"`
	BaseDate          Date                   `json:"base_date"`
	Group             string                 `json:"group"`
	Status            string                 `json:"status"`
	StartedAt         time.Time              `json:"started_at"`
	FinishedAt        time.Time              `json:"finished_at"`
	SurveysConsidered int                    `json:"surveys_considered"`
	SurveysPlanned    int                    `json:"surveys_planned"`
	TriggersPlanned   int                    `json:"triggers_planned"`
	Surveys           []SurveySummary        `json:"surveys"`
	Skipped           []SkippedSurvey        `json:"skipped"`
	Warnings          []string               `json:"warnings"`
	Dispatch          trigger.DispatchReport `json:"dispatch"`
	Repair            *RepairReport          `json:"repair,omitempty"`
	Error             string                 `json:"error,omitempty"`
}

// RunOptions parameterize one planning run.
type RunOptions struct {
	// BaseDate defaults to tomorrow (UTC).
	BaseDate Date
	// Group defaults to the planner's configured group.
	Group string
	// Repair reconciles the group after dispatch and re-creates missing triggers.
	Repair bool
}

// Config holds the planner settings.
type Config struct {
	Group   string
	Target  string
	Workers int
	Now     func() time.Time
}

// Planner runs the whole pipeline: load, generate, dispatch, reconcile.
type Planner struct {
	src      Source
	gen      *Generator
	disp     TriggerDispatcher
	rec      TriggerReconciler
	notifier Notifier
	cfg      Config
	log      *zap.Logger
}

func NewPlanner(src Source, gen *Generator, disp TriggerDispatcher, rec TriggerReconciler, cfg Config, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	if gen == nil {
		gen = NewGenerator(DefaultNamePrefix, false, log)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Planner{src: src, gen: gen, disp: disp, rec: rec, cfg: cfg, log: log}
}

// SetNotifier registers n to receive run reports.
func (p *Planner) SetNotifier(n Notifier) {
	p.notifier = n
}

// Group returns the default trigger group.
func (p *Planner) Group() string {
	return p.cfg.Group
}

// DefaultBaseDate is the date used when a run names none.
func (p *Planner) DefaultBaseDate() Date {
	return Tomorrow(p.cfg.Now())
}

// Preview builds the plan for base without touching the substrate. Only a
// failure to list active surveys is returned as an error.
func (p *Planner) Preview(ctx context.Context, base Date) (*Plan, error) {
	if base.IsZero() {
		base = p.DefaultBaseDate()
	}
	surveys, err := p.src.ActiveSurveys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active surveys: %w", err)
	}

	loader := NewLoader(p.src)
	results := make([]surveyResult, len(surveys))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.planSurvey(ctx, loader, SurveyFromModel(surveys[i]), base)
			}
		}()
	}
	for i := range surveys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	plan := &Plan{
		BaseDate:          base,
		SurveysConsidered: len(surveys),
		Surveys:           []SurveySummary{},
		Skipped:           []SkippedSurvey{},
		Warnings:          []string{},
		Triggers:          []PlannedTrigger{},
	}
	for _, r := range results {
		plan.Warnings = append(plan.Warnings, r.warnings...)
		if r.skipped != nil {
			plan.Skipped = append(plan.Skipped, *r.skipped)
			continue
		}
		plan.Surveys = append(plan.Surveys, r.summary)
		plan.Triggers = append(plan.Triggers, r.triggers...)
	}
	SortTriggers(plan.Triggers)
	return plan, nil
}

type surveyResult struct {
	triggers []PlannedTrigger
	summary  SurveySummary
	skipped  *SkippedSurvey
	warnings []string
}

func (p *Planner) planSurvey(ctx context.Context, loader *Loader, s SurveyInstance, base Date) surveyResult {
	skip := func(reason string) surveyResult {
		p.log.Warn("survey skipped", zap.Int64("survey_id", s.ID), zap.Int64("schedule_id", s.ScheduleID), zap.String("reason", reason))
		return surveyResult{skipped: &SkippedSurvey{SurveyID: s.ID, ScheduleID: s.ScheduleID, Reason: reason}}
	}
	if !s.IsActive {
		return skip("inactive")
	}
	if err := ctx.Err(); err != nil {
		return skip(err.Error())
	}

	bundle, err := loader.Load(ctx, s)
	if err != nil {
		return skip(err.Error())
	}
	triggers, err := p.gen.GeneratePlan(s, bundle.Schedule, base, bundle.Refs)
	if err != nil {
		r := skip(err.Error())
		r.warnings = bundle.Warnings
		return r
	}

	summary := SurveySummary{SurveyID: s.ID, ScheduleName: bundle.Schedule.Name, QueryCount: len(triggers)}
	if bundle.Refs.Asset != nil {
		summary.AssetSymbol = bundle.Refs.Asset.AssetSymbol
	}
	return surveyResult{triggers: triggers, summary: summary, warnings: bundle.Warnings}
}

// Run plans opts.BaseDate for every active survey and dispatches the result.
func (p *Planner) Run(ctx context.Context, opts RunOptions) (report RunReport) {
	if opts.BaseDate.IsZero() {
		opts.BaseDate = p.DefaultBaseDate()
	}
	if opts.Group == "" {
		opts.Group = p.cfg.Group
	}
	report = RunReport{
		RunID:     uuid.NewString(),
		BaseDate:  opts.BaseDate,
		Group:     opts.Group,
		StartedAt: p.cfg.Now().UTC(),
		Surveys:   []SurveySummary{},
		Skipped:   []SkippedSurvey{},
		Warnings:  []string{},
	}
	log := p.log.With(zap.String("run_id", report.RunID), zap.String("base_date", opts.BaseDate.String()))
	log.Info("planning run started", zap.String("group", opts.Group))

	defer func() {
		report.FinishedAt = p.cfg.Now().UTC()
		if p.notifier != nil {
			p.notifier.RunFinished(ctx, report)
		}
	}()

	plan, err := p.Preview(ctx, opts.BaseDate)
	if err != nil {
		report.Status = trigger.StatusError
		report.Error = err.Error()
		log.Error("planning run failed", zap.Error(err))
		return report
	}
	report.SurveysConsidered = plan.SurveysConsidered
	report.SurveysPlanned = len(plan.Surveys)
	report.TriggersPlanned = len(plan.Triggers)
	report.Surveys = plan.Surveys
	report.Skipped = plan.Skipped
	report.Warnings = plan.Warnings

	specs, failed := p.specs(plan.Triggers, opts.Group)
	report.Dispatch = p.disp.Dispatch(ctx, specs, opts.Group)
	report.Dispatch.Total += len(failed)
	report.Dispatch.Failed = append(report.Dispatch.Failed, failed...)

	if opts.Repair && p.rec != nil && ctx.Err() == nil {
		report.Repair = p.repair(ctx, plan, opts.Group)
	}
	report.Status = runStatus(report)

	log.Info("planning run finished",
		zap.String("status", report.Status),
		zap.Int("surveys_planned", report.SurveysPlanned),
		zap.Int("surveys_skipped", len(report.Skipped)),
		zap.Int("triggers_planned", report.TriggersPlanned),
		zap.Int("created", report.Dispatch.CreatedCount),
		zap.Int("skipped_existing", report.Dispatch.SkippedExistingCount),
		zap.Int("failed", len(report.Dispatch.Failed)),
		zap.Int("not_attempted", len(report.Dispatch.NotAttempted)))
	return report
}

func (p *Planner) specs(triggers []PlannedTrigger, group string) ([]trigger.Spec, []trigger.Failure) {
	specs := make([]trigger.Spec, 0, len(triggers))
	var failed []trigger.Failure
	for _, t := range triggers {
		spec, err := t.Spec(group, p.cfg.Target)
		if err != nil {
			failed = append(failed, trigger.Failure{TriggerName: t.Name, Error: err.Error()})
			continue
		}
		specs = append(specs, spec)
	}
	return specs, failed
}

func (p *Planner) repair(ctx context.Context, plan *Plan, group string) *RepairReport {
	rec, err := p.rec.Reconcile(ctx, plan.Names(), group)
	if err != nil {
		p.log.Warn("reconcile failed", zap.String("group", group), zap.Error(err))
		return &RepairReport{Missing: []string{}, Unexpected: []string{}, Error: err.Error()}
	}
	out := &RepairReport{Missing: rec.Missing, Unexpected: rec.Unexpected}
	if len(rec.Missing) == 0 {
		return out
	}

	missing := make(map[string]struct{}, len(rec.Missing))
	for _, name := range rec.Missing {
		missing[name] = struct{}{}
	}
	var retry []PlannedTrigger
	for _, t := range plan.Triggers {
		if _, ok := missing[t.Name]; ok {
			retry = append(retry, t)
		}
	}
	specs, failed := p.specs(retry, group)
	d := p.disp.Dispatch(ctx, specs, group)
	d.Total += len(failed)
	d.Failed = append(d.Failed, failed...)
	out.Dispatch = &d
	return out
}

func runStatus(r RunReport) string {
	if r.Error != "" {
		return trigger.StatusError
	}
	status := r.Dispatch.Status()
	if r.Repair != nil && r.Repair.Error == "" {
		// after a repair the group state is what counts
		status = trigger.StatusSuccess
		if r.Repair.Dispatch != nil && !r.Repair.Dispatch.Complete() {
			status = trigger.StatusPartialSuccess
		}
	}
	if status == trigger.StatusSuccess && len(r.Skipped) > 0 {
		status = trigger.StatusPartialSuccess
	}
	return status
}
