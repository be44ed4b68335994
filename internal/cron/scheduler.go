package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"surveyplanner/internal/planning"
	"surveyplanner/internal/trigger/redisstore"
)

// PlanRunner runs one planning pass.
type PlanRunner interface {
	Run(ctx context.Context, opts planning.RunOptions) planning.RunReport
}

// TriggerSweeper fires due triggers of a self-hosted substrate.
type TriggerSweeper interface {
	Sweep(ctx context.Context) (redisstore.SweepResult, error)
}

// Jobs configures the recurring jobs. An empty spec or nil component
// disables that job.
type Jobs struct {
	PlanningSpec string
	Planner      PlanRunner
	SweepSpec    string
	Sweeper      TriggerSweeper
	// JobTimeout bounds one job run.
	JobTimeout time.Duration
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *zap.Logger
}

// New creates a new cron scheduler. A job still running when its next tick
// comes is skipped for that tick.
func New(jobs Jobs, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs.JobTimeout <= 0 {
		jobs.JobTimeout = 30 * time.Minute
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	if s.jobs.PlanningSpec != "" && s.jobs.Planner != nil {
		if _, err := s.cron.AddFunc(s.jobs.PlanningSpec, func() {
			s.logger.Debug("Running: planning")
			s.runPlanning()
		}); err != nil {
			return fmt.Errorf("planning job %q: %w", s.jobs.PlanningSpec, err)
		}
	}

	if s.jobs.SweepSpec != "" && s.jobs.Sweeper != nil {
		if _, err := s.cron.AddFunc(s.jobs.SweepSpec, func() {
			s.logger.Debug("Running: trigger sweep")
			s.runSweep()
		}); err != nil {
			return fmt.Errorf("sweep job %q: %w", s.jobs.SweepSpec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// runPlanning plans tomorrow and repairs the group afterwards.
func (s *Scheduler) runPlanning() {
	defer s.recoverFromPanic("planning")

	ctx, cancel := context.WithTimeout(context.Background(), s.jobs.JobTimeout)
	defer cancel()

	report := s.jobs.Planner.Run(ctx, planning.RunOptions{Repair: true})
	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.String("base_date", report.BaseDate.String()),
		zap.String("status", report.Status),
		zap.Int("triggers", report.TriggersPlanned),
		zap.Int("created", report.Dispatch.CreatedCount),
		zap.Int("failed", len(report.Dispatch.Failed)),
	}
	if report.Error != "" {
		s.logger.Error("Scheduled planning run failed", append(fields, zap.String("error", report.Error))...)
		return
	}
	s.logger.Info("Scheduled planning run finished", fields...)
}

func (s *Scheduler) runSweep() {
	defer s.recoverFromPanic("sweep")

	ctx, cancel := context.WithTimeout(context.Background(), s.jobs.JobTimeout)
	defer cancel()

	res, err := s.jobs.Sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("Trigger sweep failed", zap.Error(err))
		return
	}
	if res.Fired+res.Retried+res.Disabled > 0 {
		s.logger.Info("Trigger sweep",
			zap.Int("fired", res.Fired), zap.Int("retried", res.Retried), zap.Int("disabled", res.Disabled))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}

// cronLogger routes robfig/cron's own logging to zap.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
