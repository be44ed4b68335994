package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"surveyplanner/internal/trigger"
)

type fakePoster struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *fakePoster) PostJSON(_ context.Context, url string, body interface{}) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, _ := body.([]byte)
	p.calls = append(p.calls, url+" "+string(raw))
	if p.err != nil {
		return nil, p.err
	}
	return []byte(`{"status":true}`), nil
}

func seed(t *testing.T, s *Store, specs ...trigger.Spec) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateGroup(ctx, "g"); err != nil && !errors.Is(err, trigger.ErrAlreadyExists) {
		t.Fatal(err)
	}
	for _, spec := range specs {
		spec.Group = "g"
		if err := s.CreateTrigger(ctx, spec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSweepFiresDueTriggers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)
	now := time.Date(2025, 1, 10, 1, 0, 30, 0, time.UTC)
	seed(t, s,
		trigger.Spec{Name: "due", FireAt: now.Add(-30 * time.Second), Payload: []byte(`{"n":1}`)},
		trigger.Spec{Name: "later", FireAt: now.Add(24 * time.Hour), Payload: []byte(`{"n":2}`)},
		trigger.Spec{Name: "own-target", FireAt: now.Add(-time.Hour), Target: "http://other/invoke", Payload: []byte(`{"n":3}`)},
	)

	poster := &fakePoster{}
	sw := NewSweeper(s, poster, "http://worker/api/worker/invoke", nil)
	sw.now = func() time.Time { return now }

	res, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if res.Fired != 2 || res.Retried != 0 {
		t.Fatalf("Sweep() = %+v", res)
	}
	want := map[string]bool{
		`http://worker/api/worker/invoke {"n":1}`: true,
		`http://other/invoke {"n":3}`:             true,
	}
	for _, c := range poster.calls {
		if !want[c] {
			t.Fatalf("unexpected delivery %q", c)
		}
	}

	list, err := s.ListTriggers(ctx, "g")
	if err != nil || len(list) != 1 || list[0].Name != "later" {
		t.Fatalf("remaining triggers = %+v, %v", list, err)
	}

	again, err := sw.Sweep(ctx)
	if err != nil || again.Fired != 0 {
		t.Fatalf("second Sweep() = %+v, %v", again, err)
	}
}

func TestSweepRetriesThenDisables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore(t)
	now := time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC)
	seed(t, s, trigger.Spec{Name: "flaky", FireAt: now, Payload: []byte(`{}`)})

	poster := &fakePoster{err: errors.New("connection refused")}
	sw := NewSweeper(s, poster, "http://worker/invoke", nil)
	sw.MaxAttempts = 2
	sw.Backoff = time.Minute
	sw.now = func() time.Time { return now }

	res, err := sw.Sweep(ctx)
	if err != nil || res.Retried != 1 {
		t.Fatalf("first Sweep() = %+v, %v", res, err)
	}
	// not due again until the backoff elapses
	if res, _ := sw.Sweep(ctx); res.Retried != 0 || len(poster.calls) != 1 {
		t.Fatalf("Sweep() before backoff = %+v, calls %d", res, len(poster.calls))
	}

	sw.now = func() time.Time { return now.Add(2 * time.Minute) }
	res, err = sw.Sweep(ctx)
	if err != nil || res.Disabled != 1 {
		t.Fatalf("second Sweep() = %+v, %v", res, err)
	}

	rec, err := s.load(ctx, "g", "flaky")
	if err != nil || rec == nil {
		t.Fatalf("load = %v, %v", rec, err)
	}
	if rec.State != trigger.StateDisabled || rec.Attempts != 2 || rec.LastError != "connection refused" {
		raw, _ := json.Marshal(rec)
		t.Fatalf("record = %s", raw)
	}
}
