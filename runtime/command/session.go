package command

import (
	"context"
	"fmt"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/service/dao"
)

// Session is the unit of work of one command: reads go through an entity
// cache, writes are buffered until the executor flushes them.
type Session struct {
	ctx           context.Context
	store         dao.Store
	executions    *cache[entity.Execution, *entity.Execution]
	subscriptions *cache[entity.EventSubscription, *entity.EventSubscription]
	jobs          *cache[entity.Job, *entity.Job]
}

func newSession(ctx context.Context, store dao.Store) *Session {
	return &Session{
		ctx:           ctx,
		store:         store,
		executions:    newCache[entity.Execution, *entity.Execution](func(e *entity.Execution) string { return e.ID }),
		subscriptions: newCache[entity.EventSubscription, *entity.EventSubscription](func(e *entity.EventSubscription) string { return e.ID }),
		jobs:          newCache[entity.Job, *entity.Job](func(e *entity.Job) string { return e.ID }),
	}
}

// Execution returns the tracked execution or an error wrapping dao.ErrNotFound.
func (s *Session) Execution(id string) (*entity.Execution, error) {
	if e, ok := s.executions.lookup(id); ok {
		if e.deleted {
			return nil, fmt.Errorf("execution %v: %w", id, dao.ErrNotFound)
		}
		return e.value, nil
	}
	loaded, err := s.store.Execution(s.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("execution %v: %w", id, err)
	}
	ret, _ := s.executions.attach(loaded)
	return ret, nil
}

// Executions merges stored and pending executions matching parameters.
func (s *Session) Executions(parameters ...*dao.Parameter) ([]*entity.Execution, error) {
	loaded, err := s.store.Executions(s.ctx, parameters...)
	if err != nil {
		return nil, err
	}
	for _, e := range loaded {
		s.executions.attach(e)
	}
	return s.executions.list(parameters), nil
}

// Children returns the non-ended children of an execution.
func (s *Session) Children(parentID string) ([]*entity.Execution, error) {
	return s.Executions(dao.NewParameter(dao.ParentID, parentID), dao.NewFlag(dao.IsEnded, false))
}

func (s *Session) InsertExecution(e *entity.Execution) {
	s.executions.insert(e)
}

// Touch forces a revision check and bump on flush even when the execution
// did not change.
func (s *Session) Touch(e *entity.Execution) {
	s.executions.touch(e)
}

func (s *Session) Subscription(id string) (*entity.EventSubscription, error) {
	if e, ok := s.subscriptions.lookup(id); ok {
		if e.deleted {
			return nil, fmt.Errorf("subscription %v: %w", id, dao.ErrNotFound)
		}
		return e.value, nil
	}
	loaded, err := s.store.Subscription(s.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("subscription %v: %w", id, err)
	}
	ret, _ := s.subscriptions.attach(loaded)
	return ret, nil
}

func (s *Session) Subscriptions(parameters ...*dao.Parameter) ([]*entity.EventSubscription, error) {
	loaded, err := s.store.Subscriptions(s.ctx, parameters...)
	if err != nil {
		return nil, err
	}
	for _, e := range loaded {
		s.subscriptions.attach(e)
	}
	return s.subscriptions.list(parameters), nil
}

func (s *Session) InsertSubscription(e *entity.EventSubscription) {
	s.subscriptions.insert(e)
}

func (s *Session) DeleteSubscription(e *entity.EventSubscription) {
	s.subscriptions.remove(e)
}

func (s *Session) Job(id string) (*entity.Job, error) {
	if e, ok := s.jobs.lookup(id); ok {
		if e.deleted {
			return nil, fmt.Errorf("job %v: %w", id, dao.ErrNotFound)
		}
		return e.value, nil
	}
	loaded, err := s.store.Job(s.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("job %v: %w", id, err)
	}
	ret, _ := s.jobs.attach(loaded)
	return ret, nil
}

func (s *Session) Jobs(parameters ...*dao.Parameter) ([]*entity.Job, error) {
	loaded, err := s.store.Jobs(s.ctx, parameters...)
	if err != nil {
		return nil, err
	}
	for _, e := range loaded {
		s.jobs.attach(e)
	}
	return s.jobs.list(parameters), nil
}

func (s *Session) InsertJob(e *entity.Job) {
	s.jobs.insert(e)
}

func (s *Session) DeleteJob(e *entity.Job) {
	s.jobs.remove(e)
}

// Batch returns the pending writes.
func (s *Session) Batch() *dao.Batch {
	return &dao.Batch{
		Executions:    s.executions.changes(func(e *entity.Execution) *int { return &e.Rev }),
		Subscriptions: s.subscriptions.changes(func(e *entity.EventSubscription) *int { return &e.Rev }),
		Jobs:          s.jobs.changes(func(e *entity.Job) *int { return &e.Rev }),
	}
}
