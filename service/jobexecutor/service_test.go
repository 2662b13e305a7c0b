package jobexecutor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viant/fluxbpm/internal/idgen"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/runtime/job"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/dao/memory"
	"github.com/viant/fluxbpm/service/event"
)

type jobFunc func(ctx *command.Context, job *entity.Job) error

func (f jobFunc) Execute(ctx *command.Context, job *entity.Job) error { return f(ctx, job) }

type fixture struct {
	store    *memory.Store
	handlers *command.Handlers
	executor *command.Executor
	mux      sync.Mutex
	events   []*event.Event
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{store: memory.New(), handlers: command.NewHandlers()}
	dispatcher := event.DispatcherFunc(func(ctx context.Context, evt *event.Event) error {
		f.mux.Lock()
		defer f.mux.Unlock()
		f.events = append(f.events, evt)
		return nil
	})
	f.executor = command.NewExecutor(f.store, nil,
		command.WithLogger(zaptest.NewLogger(t)),
		command.WithHandlers(f.handlers),
		command.WithDispatcher(dispatcher, false))
	return f
}

func (f *fixture) schedule(t *testing.T, jobType string, count, retries int) []string {
	batch := &dao.Batch{}
	var ids []string
	for i := 0; i < count; i++ {
		id := idgen.New()
		ids = append(ids, id)
		batch.Jobs.Inserted = append(batch.Jobs.Inserted, &entity.Job{ID: id, Type: jobType, Retries: retries, DueDate: time.Now().Add(-time.Second)})
	}
	require.NoError(t, f.store.Flush(context.Background(), batch))
	return ids
}

func (f *fixture) count(eventType string) int {
	f.mux.Lock()
	defer f.mux.Unlock()
	ret := 0
	for _, evt := range f.events {
		if evt.Context.EventType == eventType {
			ret++
		}
	}
	return ret
}

func newService(t *testing.T, f *fixture, owner string) *Service {
	config := DefaultConfig()
	config.LockOwner = owner
	config.ConflictDelay = time.Millisecond
	service, err := New(f.executor, WithConfig(config), WithBackoff(job.ExponentialBackoff{}))
	require.NoError(t, err)
	return service
}

func TestService_FailingJobGoesDeadOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var attempts int32
	f.handlers.RegisterJob("flaky", jobFunc(func(ctx *command.Context, job *entity.Job) error {
		return fmt.Errorf("attempt %d failed", atomic.AddInt32(&attempts, 1))
	}))
	ids := f.schedule(t, "flaky", 1, 3)
	service := newService(t, f, "a")

	for i := 0; i < 5; i++ {
		_, err := service.Tick(ctx)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, attempts)
	stored, err := f.store.Job(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, stored.Dead)
	assert.Equal(t, 0, stored.Retries)
	assert.Contains(t, stored.ExceptionMessage, "attempt 3 failed")
	assert.Empty(t, stored.LockOwner)
	assert.Equal(t, 2, f.count(event.JobFailed))
	assert.Equal(t, 1, f.count(event.JobDead))

	dead, err := f.store.Jobs(ctx, dao.NewFlag(dao.Dead, true))
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestService_DomainErrorIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.handlers.RegisterJob("invalid", jobFunc(func(ctx *command.Context, job *entity.Job) error {
		return command.NewDomainError("unknown activity")
	}))
	ids := f.schedule(t, "invalid", 1, 3)
	service := newService(t, f, "a")

	executed, err := service.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	stored, err := f.store.Job(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, stored.Dead)
	assert.Equal(t, 2, stored.Retries)
	assert.Equal(t, 1, f.count(event.JobDead))
}

func TestService_RacingExecutorsRunEachJobOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var runs sync.Map
	f.handlers.RegisterJob("work", jobFunc(func(ctx *command.Context, job *entity.Job) error {
		counter, _ := runs.LoadOrStore(job.ID, new(int32))
		atomic.AddInt32(counter.(*int32), 1)
		return nil
	}))
	ids := f.schedule(t, "work", 50, 3)

	var services []*Service
	for i := 0; i < 4; i++ {
		services = append(services, newService(t, f, fmt.Sprintf("executor-%d", i)))
	}
	var wg sync.WaitGroup
	for _, service := range services {
		wg.Add(1)
		go func(service *Service) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, _ = service.Tick(ctx)
			}
		}(service)
	}
	wg.Wait()
	for _, id := range ids {
		counter, ok := runs.Load(id)
		require.True(t, ok, id)
		assert.EqualValues(t, 1, atomic.LoadInt32(counter.(*int32)), id)
	}
	remaining, err := f.store.Jobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, len(ids), f.count(event.JobExecuted))
}

func TestService_SkipsStaleJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var called int32
	f.handlers.RegisterJob("work", jobFunc(func(ctx *command.Context, job *entity.Job) error {
		atomic.AddInt32(&called, 1)
		return nil
	}))
	f.schedule(t, "work", 1, 3)
	service := newService(t, f, "a")
	acquired, err := service.Acquire(ctx)
	require.NoError(t, err)
	require.Len(t, acquired, 1)

	stored, err := f.store.Job(ctx, acquired[0].ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Flush(ctx, &dao.Batch{Jobs: dao.Changes[entity.Job]{Deleted: []*entity.Job{stored}}}))

	assert.NoError(t, service.Execute(ctx, acquired[0]))
	assert.EqualValues(t, 0, called)
	assert.Equal(t, 0, f.count(event.JobFailed))
}

func TestService_StartShutdown(t *testing.T) {
	f := newFixture(t)
	var called int32
	f.handlers.RegisterJob("work", jobFunc(func(ctx *command.Context, job *entity.Job) error {
		atomic.AddInt32(&called, 1)
		return nil
	}))
	f.schedule(t, "work", 10, 3)
	config := DefaultConfig()
	config.PollInterval = 5 * time.Millisecond
	service, err := New(f.executor, WithConfig(config), WithWorkers(2))
	require.NoError(t, err)
	assert.NotEmpty(t, service.Owner())

	require.NoError(t, service.Start(context.Background()))
	assert.Error(t, service.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&called) == 10 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, service.Shutdown(ctx))
	assert.NoError(t, service.Shutdown(ctx))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	f := newFixture(t)
	_, err = New(f.executor, WithWorkers(0))
	assert.Error(t, err)
}
