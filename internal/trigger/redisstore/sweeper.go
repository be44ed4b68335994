package redisstore

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"surveyplanner/internal/pkg/httpclient"
	"surveyplanner/internal/trigger"
)

// Poster delivers a payload to a target URL.
type Poster interface {
	PostJSON(ctx context.Context, url string, body interface{}) ([]byte, error)
}

// SweepResult counts the outcome of one sweep.
type SweepResult struct {
	Fired    int `json:"fired"`
	Retried  int `json:"retried"`
	Disabled int `json:"disabled"`
}

// Sweeper fires due triggers by POSTing their payload to the trigger target,
// or to DefaultTarget when the target is not an http(s) URL. A delivered
// trigger is deleted; a failed one is retried with backoff and disabled after
// MaxAttempts.
type Sweeper struct {
	store         *Store
	client        Poster
	DefaultTarget string
	BatchSize     int
	MaxAttempts   int
	Backoff       time.Duration

	log *zap.Logger
	now func() time.Time
}

func NewSweeper(store *Store, client Poster, defaultTarget string, log *zap.Logger) *Sweeper {
	if client == nil {
		client = httpclient.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		store:         store,
		client:        client,
		DefaultTarget: defaultTarget,
		BatchSize:     100,
		MaxAttempts:   5,
		Backoff:       time.Minute,
		log:           log,
		now:           time.Now,
	}
}

// Sweep delivers every trigger that is due across all groups.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	groups, err := s.store.groups(ctx)
	if err != nil {
		return res, err
	}
	now := s.now().UTC()
	for _, group := range groups {
		names, err := s.store.claimDue(ctx, group, now, s.BatchSize)
		for _, name := range names {
			s.fire(ctx, group, name, now, &res)
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Sweeper) fire(ctx context.Context, group, name string, now time.Time, res *SweepResult) {
	log := s.log.With(zap.String("group", group), zap.String("trigger", name))
	rec, err := s.store.load(ctx, group, name)
	if err != nil {
		log.Error("failed to load due trigger", zap.Error(err))
		return
	}
	if rec == nil {
		// deleted after it was claimed
		return
	}

	target := rec.Target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = s.DefaultTarget
	}
	if target == "" {
		s.fail(ctx, rec, "no target url configured", now, res)
		return
	}

	if _, err := s.client.PostJSON(ctx, target, []byte(rec.Payload)); err != nil {
		s.fail(ctx, rec, err.Error(), now, res)
		return
	}
	if err := s.store.remove(ctx, rec); err != nil {
		log.Error("delivered trigger could not be removed", zap.Error(err))
	}
	res.Fired++
	log.Info("trigger fired", zap.String("target", target))
}

func (s *Sweeper) fail(ctx context.Context, rec *record, msg string, now time.Time, res *SweepResult) {
	rec.Attempts++
	rec.LastError = msg
	log := s.log.With(zap.String("group", rec.Group), zap.String("trigger", rec.Name), zap.Int("attempts", rec.Attempts))

	if rec.Attempts >= s.MaxAttempts {
		rec.State = trigger.StateDisabled
		if err := s.store.save(ctx, rec); err != nil {
			log.Error("failed to disable trigger", zap.Error(err))
		}
		res.Disabled++
		log.Error("trigger disabled after repeated delivery failures", zap.String("error", msg))
		return
	}

	next := now.Add(time.Duration(rec.Attempts) * s.Backoff)
	if err := s.store.reschedule(ctx, rec, next); err != nil {
		log.Error("failed to reschedule trigger", zap.Error(err))
	}
	res.Retried++
	log.Warn("trigger delivery failed, will retry", zap.String("error", msg), zap.Time("next_attempt", next))
}
