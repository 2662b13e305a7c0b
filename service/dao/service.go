package dao

import (
	"context"
	"time"

	"github.com/viant/fluxbpm/model/entity"
)

// Store is the durable entity store. Reads return copies; writes go through
// Flush, which applies a whole unit of work atomically.
type Store interface {
	Execution(ctx context.Context, id string) (*entity.Execution, error)

	Executions(ctx context.Context, parameters ...*Parameter) ([]*entity.Execution, error)

	Subscription(ctx context.Context, id string) (*entity.EventSubscription, error)

	Subscriptions(ctx context.Context, parameters ...*Parameter) ([]*entity.EventSubscription, error)

	Job(ctx context.Context, id string) (*entity.Job, error)

	Jobs(ctx context.Context, parameters ...*Parameter) ([]*entity.Job, error)

	// DueJobs lists jobs eligible for acquisition at now, earliest due first.
	DueJobs(ctx context.Context, now time.Time, limit int) ([]*entity.Job, error)

	// AcquireJob leases job to owner when its revision is still job.Rev. It
	// returns false, without error, when another acquirer won.
	AcquireJob(ctx context.Context, job *entity.Job, owner string, expiration time.Time) (bool, error)

	// Flush applies the batch in one transaction. Updates and deletes are
	// conditional on the entity revision; ErrOptimisticLock is returned when
	// any of them matched no row.
	Flush(ctx context.Context, batch *Batch) error

	Close() error
}

// Changes groups the pending writes of one entity type.
type Changes[T any] struct {
	Inserted []*T
	Updated  []*T
	Deleted  []*T
}

// Len returns the number of pending writes.
func (c *Changes[T]) Len() int {
	return len(c.Inserted) + len(c.Updated) + len(c.Deleted)
}

// Batch is the write set of one command.
type Batch struct {
	Executions    Changes[entity.Execution]
	Subscriptions Changes[entity.EventSubscription]
	Jobs          Changes[entity.Job]
}

// IsEmpty returns true when there is nothing to write.
func (b *Batch) IsEmpty() bool {
	return b.Executions.Len()+b.Subscriptions.Len()+b.Jobs.Len() == 0
}
