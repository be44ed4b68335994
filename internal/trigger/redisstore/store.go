// Package redisstore is a self-hosted trigger substrate on redis. Each group
// keeps a hash of trigger records and a sorted set of fire times; a Sweeper
// delivers due triggers.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"surveyplanner/internal/trigger"
)

const DefaultPrefix = "surveyplanner:triggers"

// record is the stored form of one trigger.
type record struct {
	Name        string    `json:"name"`
	Group       string    `json:"group"`
	FireAt      time.Time `json:"fire_at"`
	Target      string    `json:"target"`
	Payload     string    `json:"payload"`
	Description string    `json:"description,omitempty"`
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
}

// createScript writes the record and its fire time together. The braces in
// the key names keep both keys of a group in one cluster slot.
var createScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) groupsKey() string {
	return s.prefix + ":groups"
}

func (s *Store) recordsKey(group string) string {
	return s.prefix + ":group:{" + group + "}:records"
}

func (s *Store) dueKey(group string) string {
	return s.prefix + ":group:{" + group + "}:due"
}

func (s *Store) CreateGroup(ctx context.Context, name string) error {
	added, err := s.rdb.SAdd(ctx, s.groupsKey(), name).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return trigger.ErrAlreadyExists
	}
	return nil
}

func (s *Store) groupExists(ctx context.Context, name string) (bool, error) {
	return s.rdb.SIsMember(ctx, s.groupsKey(), name).Result()
}

// CreateTrigger stores the record and schedules it in one script. HSETNX is
// the uniqueness guarantee for concurrent planning runs.
func (s *Store) CreateTrigger(ctx context.Context, spec trigger.Spec) error {
	ok, err := s.groupExists(ctx, spec.Group)
	if err != nil {
		return err
	}
	if !ok {
		return trigger.ErrGroupNotFound
	}

	raw, err := json.Marshal(record{
		Name:        spec.Name,
		Group:       spec.Group,
		FireAt:      spec.FireAt.UTC(),
		Target:      spec.Target,
		Payload:     string(spec.Payload),
		Description: spec.Description,
		State:       trigger.StateEnabled,
	})
	if err != nil {
		return fmt.Errorf("encode trigger %s: %w", spec.Name, err)
	}

	created, err := createScript.Run(ctx, s.rdb,
		[]string{s.recordsKey(spec.Group), s.dueKey(spec.Group)},
		spec.Name, raw, spec.FireAt.Unix(),
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return trigger.ErrAlreadyExists
	}
	return nil
}

func (s *Store) ListTriggers(ctx context.Context, group string) ([]trigger.Summary, error) {
	ok, err := s.groupExists(ctx, group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, trigger.ErrGroupNotFound
	}
	all, err := s.rdb.HGetAll(ctx, s.recordsKey(group)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]trigger.Summary, 0, len(all))
	for name, raw := range all {
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode trigger %s: %w", name, err)
		}
		out = append(out, trigger.Summary{
			Name:           name,
			State:          rec.State,
			FireExpression: trigger.AtExpression(rec.FireAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteTrigger(ctx context.Context, name, group string) error {
	pipe := s.rdb.TxPipeline()
	del := pipe.HDel(ctx, s.recordsKey(group), name)
	pipe.ZRem(ctx, s.dueKey(group), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return trigger.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, name string) error {
	pipe := s.rdb.TxPipeline()
	rem := pipe.SRem(ctx, s.groupsKey(), name)
	pipe.Del(ctx, s.recordsKey(name), s.dueKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if rem.Val() == 0 {
		return trigger.ErrNotFound
	}
	return nil
}

func (s *Store) groups(ctx context.Context) ([]string, error) {
	groups, err := s.rdb.SMembers(ctx, s.groupsKey()).Result()
	sort.Strings(groups)
	return groups, err
}

// claimDue removes up to limit due names from the group's schedule and
// returns the ones this caller won. Concurrent sweepers never claim the same
// trigger twice.
func (s *Store) claimDue(ctx context.Context, group string, now time.Time, limit int) ([]string, error) {
	names, err := s.rdb.ZRangeByScore(ctx, s.dueKey(group), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	claimed := make([]string, 0, len(names))
	for _, name := range names {
		n, err := s.rdb.ZRem(ctx, s.dueKey(group), name).Result()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, name)
		}
	}
	return claimed, nil
}

func (s *Store) load(ctx context.Context, group, name string) (*record, error) {
	raw, err := s.rdb.HGet(ctx, s.recordsKey(group), name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode trigger %s: %w", name, err)
	}
	return &rec, nil
}

func (s *Store) save(ctx context.Context, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.recordsKey(rec.Group), rec.Name, raw).Err()
}

func (s *Store) reschedule(ctx context.Context, rec *record, at time.Time) error {
	if err := s.save(ctx, rec); err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, s.dueKey(rec.Group), redis.Z{Score: float64(at.Unix()), Member: rec.Name}).Err()
}

func (s *Store) remove(ctx context.Context, rec *record) error {
	return s.rdb.HDel(ctx, s.recordsKey(rec.Group), rec.Name).Err()
}
