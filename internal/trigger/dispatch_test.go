package trigger

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func specs(n int) []Spec {
	out := make([]Spec, n)
	base := time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = Spec{
			Name:    fmt.Sprintf("crypto-forecast-1-%d-20250110T0100", i+1),
			FireAt:  base.Add(time.Duration(i) * time.Hour),
			Payload: []byte(`{}`),
		}
	}
	return out
}

func TestDispatchIsIdempotent(t *testing.T) {
	t.Parallel()

	sub := newFakeSubstrate()
	d := NewDispatcher(sub, Options{Concurrency: 3}, nil)
	plan := specs(5)

	first := d.Dispatch(context.Background(), plan, "g")
	if first.CreatedCount != 5 || first.SkippedExistingCount != 0 || !first.Complete() {
		t.Fatalf("first dispatch = %+v, want 5 created", first)
	}

	second := d.Dispatch(context.Background(), plan, "g")
	if second.CreatedCount != 0 || second.SkippedExistingCount != 5 {
		t.Fatalf("second dispatch = %+v, want 0 created and 5 skipped", second)
	}
	if second.Status() != StatusSuccess {
		t.Fatalf("second dispatch status = %s, want success", second.Status())
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	t.Parallel()

	sub := newFakeSubstrate()
	plan := specs(5)
	sub.rejects[plan[1].Name] = errThrottled
	sub.rejects[plan[3].Name] = errThrottled

	report := NewDispatcher(sub, Options{Concurrency: 2}, nil).Dispatch(context.Background(), plan, "g")
	if report.CreatedCount != 3 {
		t.Fatalf("CreatedCount = %d, want 3", report.CreatedCount)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("Failed = %v, want 2 entries", report.Failed)
	}
	if report.Failed[0].TriggerName != plan[1].Name || report.Failed[1].TriggerName != plan[3].Name {
		t.Fatalf("Failed names = %v", report.Failed)
	}
	if report.Failed[0].Error != errThrottled.Error() {
		t.Fatalf("Failed error = %q", report.Failed[0].Error)
	}
	if report.Status() != StatusPartialSuccess {
		t.Fatalf("Status = %s, want partial_success", report.Status())
	}
}

func TestDispatchExistingGroupIsNotAnError(t *testing.T) {
	t.Parallel()

	sub := newFakeSubstrate()
	if err := sub.CreateGroup(context.Background(), "g"); err != nil {
		t.Fatal(err)
	}
	report := NewDispatcher(sub, Options{}, nil).Dispatch(context.Background(), specs(1), "g")
	if report.GroupError != "" || report.CreatedCount != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestDispatchCancelledReportsNotAttempted(t *testing.T) {
	t.Parallel()

	sub := newFakeSubstrate()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub.onCreate = func(string) { cancel() }

	plan := specs(6)
	report := NewDispatcher(sub, Options{Concurrency: 1}, nil).Dispatch(ctx, plan, "g")

	if report.CreatedCount != 1 {
		t.Fatalf("CreatedCount = %d, want the in-flight call to finish", report.CreatedCount)
	}
	if len(report.NotAttempted) != 5 {
		t.Fatalf("NotAttempted = %v, want 5 names", report.NotAttempted)
	}
	if report.NotAttempted[0] != plan[1].Name {
		t.Fatalf("NotAttempted[0] = %s, want %s", report.NotAttempted[0], plan[1].Name)
	}
	if report.Complete() || report.Status() == StatusSuccess {
		t.Fatalf("cancelled dispatch must not report success: %+v", report)
	}
}

func TestDispatchAlreadyCancelled(t *testing.T) {
	t.Parallel()

	sub := newFakeSubstrate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewDispatcher(sub, Options{}, nil).Dispatch(ctx, specs(3), "g")
	if sub.creates != 0 {
		t.Fatalf("substrate saw %d creates after cancellation", sub.creates)
	}
	if len(report.NotAttempted) != 3 || report.Status() != StatusError {
		t.Fatalf("report = %+v", report)
	}
}

func TestDispatchEmptyPlan(t *testing.T) {
	t.Parallel()

	report := NewDispatcher(newFakeSubstrate(), Options{}, nil).Dispatch(context.Background(), nil, "g")
	if report.Total != 0 || report.Status() != StatusSuccess {
		t.Fatalf("report = %+v", report)
	}
}

func TestAtExpressionRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 17, 1, 0, 0, 0, time.UTC)
	expr := AtExpression(at)
	if expr != "at(2025-01-17T01:00:00)" {
		t.Fatalf("AtExpression = %s", expr)
	}
	got, err := ParseAtExpression(expr)
	if err != nil || !got.Equal(at) {
		t.Fatalf("ParseAtExpression = %v, %v", got, err)
	}
	if _, err := ParseAtExpression("rate(1 hour)"); err == nil {
		t.Fatal("expected error for non-at expression")
	}
}
