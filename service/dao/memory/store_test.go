package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/service/dao"
)

func TestStore_Flush(t *testing.T) {
	ctx := context.Background()
	store := New()

	root := &entity.Execution{ID: "e1", ProcessInstanceID: "e1", CurrentFlowElementID: "start", IsActive: true}
	child := &entity.Execution{ID: "e2", ProcessInstanceID: "e1", ParentID: "e1", CurrentFlowElementID: "task"}
	batch := &dao.Batch{}
	batch.Executions.Inserted = []*entity.Execution{root, child}
	require.NoError(t, store.Flush(ctx, batch))

	loaded, err := store.Execution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Rev)
	loaded.CurrentFlowElementID = "mutated"
	again, _ := store.Execution(ctx, "e1")
	assert.Equal(t, "start", again.CurrentFlowElementID, "reads return copies")

	children, err := store.Executions(ctx, dao.NewParameter(dao.ParentID, "e1"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "e2", children[0].ID)

	_, err = store.Execution(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	_, err = store.Execution(ctx, "")
	assert.ErrorIs(t, err, dao.ErrInvalidID)

	duplicate := &dao.Batch{}
	duplicate.Executions.Inserted = []*entity.Execution{{ID: "e1"}}
	assert.ErrorIs(t, store.Flush(ctx, duplicate), dao.ErrDuplicateID)
}

func TestStore_OptimisticLock(t *testing.T) {
	ctx := context.Background()
	store := New()
	insert := &dao.Batch{}
	insert.Executions.Inserted = []*entity.Execution{{ID: "e1", ProcessInstanceID: "e1"}}
	insert.Subscriptions.Inserted = []*entity.EventSubscription{{ID: "s1", ExecutionID: "e1", EventType: entity.EventTypeMessage}}
	require.NoError(t, store.Flush(ctx, insert))

	first, _ := store.Execution(ctx, "e1")
	second, _ := store.Execution(ctx, "e1")

	first.IsActive = true
	update := &dao.Batch{}
	update.Executions.Updated = []*entity.Execution{first}
	require.NoError(t, store.Flush(ctx, update))

	subscription, _ := store.Subscription(ctx, "s1")
	second.IsEnded = true
	stale := &dao.Batch{}
	stale.Executions.Updated = []*entity.Execution{second}
	stale.Subscriptions.Deleted = []*entity.EventSubscription{subscription}
	assert.ErrorIs(t, store.Flush(ctx, stale), dao.ErrOptimisticLock)

	_, err := store.Subscription(ctx, "s1")
	assert.NoError(t, err, "a rejected batch leaves every table untouched")
	current, _ := store.Execution(ctx, "e1")
	assert.False(t, current.IsEnded)
	assert.Equal(t, 2, current.Rev)
}

func TestStore_DueJobsAndAcquire(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	batch := &dao.Batch{}
	batch.Jobs.Inserted = []*entity.Job{
		{ID: "late", DueDate: now.Add(-time.Minute), Retries: 3},
		{ID: "early", DueDate: now.Add(-time.Hour), Retries: 3},
		{ID: "future", DueDate: now.Add(time.Hour), Retries: 3},
		{ID: "dead", DueDate: now.Add(-time.Hour), Dead: true},
		{ID: "leased", DueDate: now.Add(-time.Hour), LockOwner: "other", LockExpiration: now.Add(time.Minute)},
		{ID: "expired", DueDate: now.Add(-time.Minute), LockOwner: "other", LockExpiration: now.Add(-time.Second)},
	}
	require.NoError(t, store.Flush(ctx, batch))

	due, err := store.DueJobs(ctx, now, 0)
	require.NoError(t, err)
	var ids []string
	for _, job := range due {
		ids = append(ids, job.ID)
	}
	assert.Equal(t, []string{"early", "expired", "late"}, ids)

	limited, _ := store.DueJobs(ctx, now, 1)
	assert.Len(t, limited, 1)

	ok, err := store.AcquireJob(ctx, due[0], "me", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.AcquireJob(ctx, due[0], "you", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "a stale revision loses")

	acquired, _ := store.Job(ctx, "early")
	assert.True(t, acquired.IsLockedBy("me", now))
}

func TestStore_RacingAcquirers(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now()
	batch := &dao.Batch{}
	batch.Jobs.Inserted = []*entity.Job{{ID: "j1", DueDate: now.Add(-time.Second), Retries: 3}}
	require.NoError(t, store.Flush(ctx, batch))
	job, _ := store.Job(ctx, "j1")

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(owner int) {
			defer wg.Done()
			ok, err := store.AcquireJob(ctx, job.Clone(), string(rune('a'+owner)), now.Add(time.Minute))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&winners, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, winners)
}
