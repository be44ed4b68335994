package trigger

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type fakeSubstrate struct {
	mu       sync.Mutex
	groups   map[string]map[string]Spec
	rejects  map[string]error // CreateTrigger/DeleteTrigger failures by trigger name
	groupErr error            // returned by DeleteGroup
	listErr  error
	creates  int
	deletes  int
	onCreate func(name string)
}

func newFakeSubstrate() *fakeSubstrate {
	return &fakeSubstrate{groups: map[string]map[string]Spec{}, rejects: map[string]error{}}
}

func (f *fakeSubstrate) CreateGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[name]; ok {
		return ErrAlreadyExists
	}
	f.groups[name] = map[string]Spec{}
	return nil
}

func (f *fakeSubstrate) CreateTrigger(_ context.Context, spec Spec) error {
	if f.onCreate != nil {
		f.onCreate(spec.Name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if err := f.rejects[spec.Name]; err != nil {
		return err
	}
	g, ok := f.groups[spec.Group]
	if !ok {
		return ErrGroupNotFound
	}
	if _, ok := g[spec.Name]; ok {
		return ErrAlreadyExists
	}
	g[spec.Name] = spec
	return nil
}

func (f *fakeSubstrate) ListTriggers(_ context.Context, group string) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	g, ok := f.groups[group]
	if !ok {
		return nil, ErrGroupNotFound
	}
	out := make([]Summary, 0, len(g))
	for name, spec := range g {
		out = append(out, Summary{Name: name, State: StateEnabled, FireExpression: AtExpression(spec.FireAt)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeSubstrate) DeleteTrigger(_ context.Context, name, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if err := f.rejects[name]; err != nil {
		return err
	}
	g, ok := f.groups[group]
	if !ok {
		return ErrNotFound
	}
	if _, ok := g[name]; !ok {
		return ErrNotFound
	}
	delete(g, name)
	return nil
}

func (f *fakeSubstrate) DeleteGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groupErr != nil {
		return f.groupErr
	}
	if _, ok := f.groups[name]; !ok {
		return ErrNotFound
	}
	delete(f.groups, name)
	return nil
}

var errThrottled = errors.New("throttled")
