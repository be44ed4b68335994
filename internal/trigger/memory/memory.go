// Package memory is an in-process trigger substrate. Triggers never fire;
// it backs local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"surveyplanner/internal/trigger"
)

type entry struct {
	spec  trigger.Spec
	state string
}

type Store struct {
	mu     sync.Mutex
	groups map[string]map[string]entry
}

func New() *Store {
	return &Store{groups: make(map[string]map[string]entry)}
}

func (s *Store) CreateGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[name]; ok {
		return trigger.ErrAlreadyExists
	}
	s.groups[name] = make(map[string]entry)
	return nil
}

func (s *Store) CreateTrigger(_ context.Context, spec trigger.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[spec.Group]
	if !ok {
		return trigger.ErrGroupNotFound
	}
	if _, exists := g[spec.Name]; exists {
		return trigger.ErrAlreadyExists
	}
	spec.Payload = append([]byte(nil), spec.Payload...)
	g[spec.Name] = entry{spec: spec, state: trigger.StateEnabled}
	return nil
}

func (s *Store) ListTriggers(_ context.Context, group string) ([]trigger.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, trigger.ErrGroupNotFound
	}
	out := make([]trigger.Summary, 0, len(g))
	for name, e := range g {
		out = append(out, trigger.Summary{
			Name:           name,
			State:          e.state,
			FireExpression: trigger.AtExpression(e.spec.FireAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteTrigger(_ context.Context, name, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return trigger.ErrNotFound
	}
	if _, exists := g[name]; !exists {
		return trigger.ErrNotFound
	}
	delete(g, name)
	return nil
}

func (s *Store) DeleteGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[name]; !ok {
		return trigger.ErrNotFound
	}
	delete(s.groups, name)
	return nil
}

// Get returns a stored trigger.
func (s *Store) Get(group, name string) (trigger.Spec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.groups[group][name]
	return e.spec, ok
}
