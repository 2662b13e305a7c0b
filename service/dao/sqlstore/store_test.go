package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/service/dao"
)

func openSQLite(t *testing.T) *Store {
	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "fluxbpm.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	batch := &dao.Batch{}
	batch.Executions.Inserted = []*entity.Execution{
		{ID: "e1", ProcessInstanceID: "e1", ProcessDefinitionID: "p:1", CurrentFlowElementID: "task", IsActive: true, IsScope: true,
			Variables: map[string]interface{}{"number": 5.0, "name": "x"}},
		{ID: "e2", ProcessInstanceID: "e1", ProcessDefinitionID: "p:1", ParentID: "e1", IsConcurrent: true},
	}
	batch.Subscriptions.Inserted = []*entity.EventSubscription{
		{ID: "s1", ExecutionID: "e1", ProcessInstanceID: "e1", EventType: entity.EventTypeMessage, ActivityID: "catch", Configuration: "paid", CreateTime: created},
	}
	batch.Jobs.Inserted = []*entity.Job{
		{ID: "j1", Type: entity.JobTypeTriggerTimer, ExecutionID: "e1", ProcessInstanceID: "e1", Configuration: "s1", DueDate: created, Retries: 3, CreateTime: created},
	}
	require.NoError(t, store.Flush(ctx, batch))

	root, err := store.Execution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, root.Rev)
	assert.True(t, root.IsScope)
	assert.Equal(t, map[string]interface{}{"number": 5.0, "name": "x"}, root.Variables)

	children, err := store.Executions(ctx, dao.NewParameter(dao.ParentID, "e1"), dao.NewFlag(dao.IsEnded, false))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.True(t, children[0].IsConcurrent)

	subscriptions, err := store.Subscriptions(ctx, dao.NewParameter(dao.EventType, entity.EventTypeMessage), dao.NewParameter(dao.Configuration, "paid"))
	require.NoError(t, err)
	require.Len(t, subscriptions, 1)
	assert.True(t, created.Equal(subscriptions[0].CreateTime))

	job, err := store.Job(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "s1", job.Configuration)

	_, err = store.Execution(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	_, err = store.Executions(ctx, &dao.Parameter{Name: "Unknown", Value: "x"})
	assert.Error(t, err)
}

func TestStore_FlushConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	insert := &dao.Batch{}
	insert.Executions.Inserted = []*entity.Execution{{ID: "e1", ProcessInstanceID: "e1"}}
	insert.Jobs.Inserted = []*entity.Job{{ID: "j1", ExecutionID: "e1", Retries: 3}}
	require.NoError(t, store.Flush(ctx, insert))

	first, _ := store.Execution(ctx, "e1")
	second, _ := store.Execution(ctx, "e1")
	first.CurrentFlowElementID = "a"
	update := &dao.Batch{}
	update.Executions.Updated = []*entity.Execution{first}
	require.NoError(t, store.Flush(ctx, update))

	job, _ := store.Job(ctx, "j1")
	second.CurrentFlowElementID = "b"
	stale := &dao.Batch{}
	stale.Jobs.Deleted = []*entity.Job{job}
	stale.Executions.Updated = []*entity.Execution{second}
	err := store.Flush(ctx, stale)
	assert.ErrorIs(t, err, dao.ErrOptimisticLock)

	_, err = store.Job(ctx, "j1")
	assert.NoError(t, err, "the job delete is rolled back with the conflicting update")
	current, _ := store.Execution(ctx, "e1")
	assert.Equal(t, "a", current.CurrentFlowElementID)
	assert.Equal(t, 2, current.Rev)
}

func TestStore_AcquireJob(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	now := time.Now().UTC()
	batch := &dao.Batch{}
	batch.Jobs.Inserted = []*entity.Job{
		{ID: "j1", DueDate: now.Add(-time.Minute), Retries: 3},
		{ID: "j2", DueDate: now.Add(time.Hour), Retries: 3},
	}
	require.NoError(t, store.Flush(ctx, batch))

	due, err := store.DueJobs(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			ok, err := store.AcquireJob(ctx, due[0].Clone(), owner, now.Add(time.Minute))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&winners, 1)
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()
	assert.EqualValues(t, 1, winners)

	due, err = store.DueJobs(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "a leased job is not due until its lease expires")
	due, err = store.DueJobs(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestStore_UpdateMatchingNoRowIsConflict(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)
	store := New(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	batch := &dao.Batch{}
	batch.Executions.Updated = []*entity.Execution{{ID: "e1", ProcessInstanceID: "e1", Rev: 3}}
	err = store.Flush(context.Background(), batch)
	assert.ErrorIs(t, err, dao.ErrOptimisticLock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres, DriverMySQL} {
		dialector, err := Dialector(driver, "dsn")
		assert.NoError(t, err, driver)
		assert.NotNil(t, dialector, driver)
	}
	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)
}
