package trigger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Failure is one item that the substrate rejected.
type Failure struct {
	TriggerName string `json:"trigger_name"`
	Error       string `json:"error"`
}

// DispatchReport is the outcome of one Dispatch call.
type DispatchReport struct {
	Group                string    `json:"group"`
	Total                int       `json:"total"`
	CreatedCount         int       `json:"created_count"`
	SkippedExistingCount int       `json:"skipped_existing_count"`
	Failed               []Failure `json:"failed"`
	// NotAttempted lists triggers never sent because the context was done.
	NotAttempted []string `json:"not_attempted"`
	GroupError   string   `json:"group_error,omitempty"`
}

// Complete reports whether every trigger is now present in the substrate.
func (r DispatchReport) Complete() bool {
	return len(r.Failed) == 0 && len(r.NotAttempted) == 0
}

// Status summarizes the report.
func (r DispatchReport) Status() string {
	switch {
	case r.Complete():
		return StatusSuccess
	case r.CreatedCount+r.SkippedExistingCount == 0:
		return StatusError
	default:
		return StatusPartialSuccess
	}
}

// Dispatcher creates triggers idempotently. A name collision means the
// trigger was already created by an earlier run and counts as skipped.
type Dispatcher struct {
	sub  Substrate
	pool *pool
	log  *zap.Logger
}

func NewDispatcher(sub Substrate, opts Options, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sub: sub, pool: newPool(opts), log: log}
}

// Dispatch ensures the group exists and creates every spec in it. It never
// stops at the first failure; every item ends up in exactly one of the
// report's buckets.
func (d *Dispatcher) Dispatch(ctx context.Context, specs []Spec, group string) DispatchReport {
	report := DispatchReport{Group: group, Total: len(specs), Failed: []Failure{}, NotAttempted: []string{}}
	if len(specs) == 0 {
		return report
	}

	if ctx.Err() == nil {
		if err := d.sub.CreateGroup(ctx, group); err != nil && !errors.Is(err, ErrAlreadyExists) {
			// keep going: per-item errors will say what the substrate thinks
			report.GroupError = err.Error()
			d.log.Warn("failed to ensure trigger group", zap.String("group", group), zap.Error(err))
		}
	}

	var mu sync.Mutex
	notStarted := d.pool.run(ctx, len(specs), func(callCtx context.Context, i int) {
		spec := specs[i]
		spec.Group = group
		err := d.sub.CreateTrigger(callCtx, spec)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			report.CreatedCount++
		case errors.Is(err, ErrAlreadyExists):
			report.SkippedExistingCount++
		default:
			report.Failed = append(report.Failed, Failure{TriggerName: spec.Name, Error: err.Error()})
			d.log.Warn("failed to create trigger", zap.String("trigger", spec.Name), zap.Error(err))
		}
	})
	for _, i := range notStarted {
		report.NotAttempted = append(report.NotAttempted, specs[i].Name)
	}
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].TriggerName < report.Failed[j].TriggerName
	})

	d.log.Info("dispatch finished",
		zap.String("group", group),
		zap.Int("total", report.Total),
		zap.Int("created", report.CreatedCount),
		zap.Int("skipped_existing", report.SkippedExistingCount),
		zap.Int("failed", len(report.Failed)),
		zap.Int("not_attempted", len(report.NotAttempted)))
	return report
}
