package definition

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/service/dao"
)

// Provider resolves deployed process definitions.
type Provider interface {
	// Process returns the definition by id or dao.ErrNotFound.
	Process(ctx context.Context, id string) (*graph.Process, error)

	// IsSuspended reports whether new instances of the definition may start.
	IsSuspended(ctx context.Context, id string) (bool, error)

	// Latest returns the highest deployed version of a process key.
	Latest(ctx context.Context, key string) (*graph.Process, error)
}

type deployment struct {
	process   *graph.Process
	suspended bool
}

// Registry is an in-memory Provider holding deployed definitions.
type Registry struct {
	mux         sync.RWMutex
	deployments map[string]*deployment
}

var _ Provider = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{deployments: map[string]*deployment{}}
}

// Deploy initialises, validates and registers a definition. Redeploying an
// id replaces the definition and keeps its suspension state.
func (r *Registry) Deploy(process *graph.Process) error {
	if process == nil {
		return dao.ErrNilEntity
	}
	if err := process.Init(); err != nil {
		return err
	}
	if err := process.Validate(); err != nil {
		return fmt.Errorf("invalid process %v: %w", process.ID, err)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	if prev, ok := r.deployments[process.ID]; ok {
		prev.process = process
		return nil
	}
	r.deployments[process.ID] = &deployment{process: process}
	return nil
}

func (r *Registry) Process(_ context.Context, id string) (*graph.Process, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	d, ok := r.deployments[id]
	if !ok {
		return nil, fmt.Errorf("process definition %v: %w", id, dao.ErrNotFound)
	}
	return d.process, nil
}

func (r *Registry) IsSuspended(_ context.Context, id string) (bool, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	d, ok := r.deployments[id]
	if !ok {
		return false, fmt.Errorf("process definition %v: %w", id, dao.ErrNotFound)
	}
	return d.suspended, nil
}

// Suspend blocks new instances of the definition.
func (r *Registry) Suspend(id string) error {
	return r.setSuspended(id, true)
}

// Activate reverses Suspend.
func (r *Registry) Activate(id string) error {
	return r.setSuspended(id, false)
}

func (r *Registry) setSuspended(id string, suspended bool) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	d, ok := r.deployments[id]
	if !ok {
		return fmt.Errorf("process definition %v: %w", id, dao.ErrNotFound)
	}
	d.suspended = suspended
	return nil
}

// Latest returns the highest version deployed under key.
func (r *Registry) Latest(_ context.Context, key string) (*graph.Process, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	var candidates []*graph.Process
	for _, d := range r.deployments {
		if d.process.Key == key {
			candidates = append(candidates, d.process)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("process key %v: %w", key, dao.ErrNotFound)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Version > candidates[j].Version })
	return candidates[0], nil
}
