package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ReconcileReport compares a plan with what a group actually holds.
type ReconcileReport struct {
	Group      string   `json:"group"`
	Present    []string `json:"present"`
	Missing    []string `json:"missing"`
	Unexpected []string `json:"unexpected"`
}

// GroupSummary counts a group's triggers by state.
type GroupSummary struct {
	Group  string         `json:"group"`
	Exists bool           `json:"exists"`
	Total  int            `json:"total"`
	States map[string]int `json:"states"`
}

type Reconciler struct {
	sub  Substrate
	pool *pool
}

func NewReconciler(sub Substrate, opts Options) *Reconciler {
	return &Reconciler{sub: sub, pool: newPool(opts)}
}

// Reconcile lists group and classifies the planned names. A missing group
// means every planned name is missing.
func (r *Reconciler) Reconcile(ctx context.Context, planned []string, group string) (ReconcileReport, error) {
	report := ReconcileReport{Group: group, Present: []string{}, Missing: []string{}, Unexpected: []string{}}

	list, err := r.sub.ListTriggers(ctx, group)
	if err != nil && !errors.Is(err, ErrGroupNotFound) {
		return report, fmt.Errorf("list %s: %w", group, err)
	}

	existing := make(map[string]struct{}, len(list))
	for _, s := range list {
		existing[s.Name] = struct{}{}
	}
	want := make(map[string]struct{}, len(planned))
	for _, name := range planned {
		if _, dup := want[name]; dup {
			continue
		}
		want[name] = struct{}{}
		if _, ok := existing[name]; ok {
			report.Present = append(report.Present, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}
	for name := range existing {
		if _, ok := want[name]; !ok {
			report.Unexpected = append(report.Unexpected, name)
		}
	}
	sort.Strings(report.Present)
	sort.Strings(report.Missing)
	sort.Strings(report.Unexpected)
	return report, nil
}

// Summary counts the triggers in group by state.
func (r *Reconciler) Summary(ctx context.Context, group string) (GroupSummary, error) {
	out := GroupSummary{Group: group, States: map[string]int{}}
	list, err := r.sub.ListTriggers(ctx, group)
	if errors.Is(err, ErrGroupNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("list %s: %w", group, err)
	}
	out.Exists = true
	out.Total = len(list)
	for _, s := range list {
		out.States[s.State]++
	}
	return out, nil
}

// List returns the triggers of group sorted by name. A missing group yields
// an empty list.
func (r *Reconciler) List(ctx context.Context, group string) ([]Summary, error) {
	list, err := r.sub.ListTriggers(ctx, group)
	if errors.Is(err, ErrGroupNotFound) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", group, err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	if err := r.fillExpressions(ctx, list, group); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Reconciler) fillExpressions(ctx context.Context, list []Summary, group string) error {
	fetcher, ok := r.sub.(ExpressionFetcher)
	if !ok || len(list) == 0 {
		return nil
	}
	var mu sync.Mutex
	var firstErr error
	notStarted := r.pool.run(ctx, len(list), func(callCtx context.Context, i int) {
		if list[i].FireExpression != "" {
			return
		}
		expr, err := fetcher.FireExpression(callCtx, list[i].Name, group)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		list[i].FireExpression = expr
	})
	if firstErr != nil {
		return firstErr
	}
	if len(notStarted) > 0 {
		return fmt.Errorf("list %s: %w", group, ctx.Err())
	}
	return nil
}
