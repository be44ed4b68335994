package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// TriggerDeduper tracks trigger deliveries that are in progress or done.
type TriggerDeduper interface {
	// Seen marks name and reports whether it was already marked.
	Seen(ctx context.Context, name string) (bool, error)
	// Release forgets name so a later delivery is processed again.
	Release(ctx context.Context, name string) error
}

type redisTriggerDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func (d *redisTriggerDeduper) Seen(ctx context.Context, name string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+name, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

func (d *redisTriggerDeduper) Release(ctx context.Context, name string) error {
	return d.client.Del(ctx, d.prefix+":"+name).Err()
}

type memoryTriggerDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryTriggerDeduper(ttl time.Duration) *memoryTriggerDeduper {
	return &memoryTriggerDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: time.Now().Add(ttl),
	}
}

func (d *memoryTriggerDeduper) Seen(_ context.Context, name string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[name]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[name] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for n, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, n)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

func (d *memoryTriggerDeduper) Release(_ context.Context, name string) error {
	d.mu.Lock()
	delete(d.seen, name)
	d.mu.Unlock()
	return nil
}

// NewTriggerDeduper uses rdb when it answers a ping and falls back to an
// in-memory deduper otherwise. The ping error is returned alongside the
// fallback.
func NewTriggerDeduper(ctx context.Context, rdb redis.UniversalClient, ttl time.Duration) (TriggerDeduper, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if rdb == nil {
		return newMemoryTriggerDeduper(ttl), nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return newMemoryTriggerDeduper(ttl), err
	}

	return &redisTriggerDeduper{
		client: rdb,
		prefix: "surveyplanner:delivery",
		ttl:    ttl,
	}, nil
}

// TriggerDedup drops repeated deliveries of the same trigger_name. A
// delivery whose handler fails is released so the substrate's retry is
// processed.
func TriggerDedup(deduper TriggerDeduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}

			req := c.Request()
			if req.Body == nil {
				return next(c)
			}

			rawBody, err := io.ReadAll(req.Body)
			if err != nil {
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(rawBody))
			if len(rawBody) == 0 {
				return next(c)
			}

			var payload struct {
				TriggerName string `json:"trigger_name"`
			}
			if err := json.Unmarshal(rawBody, &payload); err != nil || payload.TriggerName == "" {
				return next(c)
			}

			isDuplicate, err := deduper.Seen(req.Context(), payload.TriggerName)
			if err != nil {
				return next(c)
			}
			if isDuplicate {
				return c.JSON(http.StatusOK, map[string]interface{}{
					"status": true,
					"msg":    "duplicate delivery",
					"obj":    map[string]string{"trigger_name": payload.TriggerName},
				})
			}

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				_ = deduper.Release(context.WithoutCancel(req.Context()), payload.TriggerName)
			}
			return err
		}
	}
}
