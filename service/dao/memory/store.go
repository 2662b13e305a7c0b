package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/service/dao"
)

// Store implements an in-memory dao.Store. All operations are thread-safe
// and return copies of the underlying entities, so callers may mutate them
// freely.
type Store struct {
	mux           sync.RWMutex
	executions    *table[entity.Execution, *entity.Execution]
	subscriptions *table[entity.EventSubscription, *entity.EventSubscription]
	jobs          *table[entity.Job, *entity.Job]
}

// Compile-time check that Store implements the DAO interface.
var _ dao.Store = (*Store)(nil)

func (s *Store) Execution(_ context.Context, id string) (*entity.Execution, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.executions.load(id)
}

func (s *Store) Executions(_ context.Context, parameters ...*dao.Parameter) ([]*entity.Execution, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.executions.list(parameters), nil
}

func (s *Store) Subscription(_ context.Context, id string) (*entity.EventSubscription, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.subscriptions.load(id)
}

func (s *Store) Subscriptions(_ context.Context, parameters ...*dao.Parameter) ([]*entity.EventSubscription, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.subscriptions.list(parameters), nil
}

func (s *Store) Job(_ context.Context, id string) (*entity.Job, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.jobs.load(id)
}

func (s *Store) Jobs(_ context.Context, parameters ...*dao.Parameter) ([]*entity.Job, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.jobs.list(parameters), nil
}

func (s *Store) DueJobs(_ context.Context, now time.Time, limit int) ([]*entity.Job, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	var due []*entity.Job
	for _, job := range s.jobs.records {
		if job.IsDue(now) {
			due = append(due, job.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueDate.Equal(due[j].DueDate) {
			return due[i].DueDate.Before(due[j].DueDate)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) AcquireJob(_ context.Context, job *entity.Job, owner string, expiration time.Time) (bool, error) {
	if job == nil {
		return false, dao.ErrNilEntity
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	current, ok := s.jobs.records[job.ID]
	if !ok || current.Rev != job.Rev {
		return false, nil
	}
	current.LockOwner = owner
	current.LockExpiration = expiration
	current.Rev++
	return true, nil
}

func (s *Store) Flush(_ context.Context, batch *dao.Batch) error {
	if batch == nil || batch.IsEmpty() {
		return nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if err := s.executions.check(&batch.Executions); err != nil {
		return err
	}
	if err := s.subscriptions.check(&batch.Subscriptions); err != nil {
		return err
	}
	if err := s.jobs.check(&batch.Jobs); err != nil {
		return err
	}
	s.executions.apply(&batch.Executions)
	s.subscriptions.apply(&batch.Subscriptions)
	s.jobs.apply(&batch.Jobs)
	return nil
}

func (s *Store) Close() error {
	return nil
}

// New constructor.
func New() *Store {
	return &Store{
		executions: newTable[entity.Execution, *entity.Execution](
			func(e *entity.Execution) string { return e.ID },
			func(e *entity.Execution) *int { return &e.Rev }),
		subscriptions: newTable[entity.EventSubscription, *entity.EventSubscription](
			func(e *entity.EventSubscription) string { return e.ID },
			func(e *entity.EventSubscription) *int { return &e.Rev }),
		jobs: newTable[entity.Job, *entity.Job](
			func(e *entity.Job) string { return e.ID },
			func(e *entity.Job) *int { return &e.Rev }),
	}
}
