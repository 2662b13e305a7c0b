package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/viant/fluxbpm/internal/metrics"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/dao/memory"
	"github.com/viant/fluxbpm/service/definition"
	"github.com/viant/fluxbpm/service/event"
)

type recordingOp struct {
	name  string
	trace *[]string
	next  []Operation
	err   error
}

func (o *recordingOp) Name() string { return o.name }

func (o *recordingOp) Run(ctx *Context) error {
	*o.trace = append(*o.trace, o.name)
	for _, op := range o.next {
		ctx.Agenda.Plan(op)
	}
	return o.err
}

func newExecutor(t *testing.T, store dao.Store, options ...Option) *Executor {
	options = append([]Option{WithLogger(zaptest.NewLogger(t))}, options...)
	return NewExecutor(store, definition.NewRegistry(), options...)
}

func seed(t *testing.T, store dao.Store, executions ...*entity.Execution) {
	batch := &dao.Batch{}
	batch.Executions.Inserted = executions
	require.NoError(t, store.Flush(context.Background(), batch))
}

func TestAgenda_FIFO(t *testing.T) {
	var trace []string
	c := &Context{Agenda: &Agenda{}}
	c.Agenda.Plan(&recordingOp{name: "a", trace: &trace, next: []Operation{
		&recordingOp{name: "c", trace: &trace},
		&recordingOp{name: "d", trace: &trace},
	}})
	c.Agenda.Plan(&recordingOp{name: "b", trace: &trace})
	require.NoError(t, c.Agenda.Run(c, 0))
	assert.Equal(t, []string{"a", "b", "c", "d"}, trace)
	assert.True(t, c.Agenda.IsEmpty())
	assert.Equal(t, 4, c.Agenda.Executed())
}

func TestAgenda_Limit(t *testing.T) {
	var trace []string
	c := &Context{Agenda: &Agenda{}}
	loop := &recordingOp{name: "loop", trace: &trace}
	loop.next = []Operation{loop}
	c.Agenda.Plan(loop)
	err := c.Agenda.Run(c, 10)
	assert.True(t, IsDomain(err))
	assert.Len(t, trace, 10)
}

func TestExecutor_CommitsAndDispatchesAfterFlush(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store, &entity.Execution{ID: "e1", ProcessInstanceID: "e1"})

	var dispatched []string
	dispatcher := event.DispatcherFunc(func(ctx context.Context, evt *event.Event) error {
		execution, err := store.Execution(ctx, evt.Context.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, "task", execution.CurrentFlowElementID, "events are dispatched after commit")
		dispatched = append(dispatched, evt.Context.EventType)
		return errors.New("ignored")
	})
	executor := newExecutor(t, store, WithDispatcher(dispatcher, false))

	err := executor.Execute(ctx, New("move", func(c *Context) error {
		execution, err := c.Session.Execution("e1")
		if err != nil {
			return err
		}
		execution.CurrentFlowElementID = "task"
		c.Emit(event.ActivityStarted, execution, nil)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{event.ActivityStarted}, dispatched)

	stored, _ := store.Execution(ctx, "e1")
	assert.Equal(t, 2, stored.Rev)
}

func TestExecutor_FailureDiscardsUnitOfWork(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store, &entity.Execution{ID: "e1", ProcessInstanceID: "e1"})
	executor := newExecutor(t, store)

	var trace []string
	err := executor.Execute(ctx, New("broken", func(c *Context) error {
		execution, _ := c.Session.Execution("e1")
		execution.IsEnded = true
		c.Session.InsertJob(&entity.Job{ID: "j1"})
		c.Agenda.Plan(&recordingOp{name: "fail", trace: &trace, err: NewDomainError("boom")})
		return nil
	}))
	assert.True(t, IsDomain(err))

	stored, _ := store.Execution(ctx, "e1")
	assert.False(t, stored.IsEnded)
	_, err = store.Job(ctx, "j1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestExecutor_CriticalDispatcherFailsCommand(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	dispatcher := event.DispatcherFunc(func(context.Context, *event.Event) error { return errors.New("down") })
	executor := newExecutor(t, store, WithDispatcher(dispatcher, true))

	err := executor.Execute(ctx, New("insert", func(c *Context) error {
		execution := &entity.Execution{ID: "e1", ProcessInstanceID: "e1"}
		c.Session.InsertExecution(execution)
		c.Emit(event.ProcessStarted, execution, nil)
		return nil
	}))
	assert.Error(t, err)
	_, err = store.Execution(ctx, "e1")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestSession_TouchConflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store, &entity.Execution{ID: "parent", ProcessInstanceID: "parent"})
	executor := newExecutor(t, store)

	release := make(chan struct{})
	loaded := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- executor.Execute(ctx, New("slow", func(c *Context) error {
			parent, err := c.Session.Execution("parent")
			if err != nil {
				return err
			}
			c.Session.Touch(parent)
			close(loaded)
			<-release
			return nil
		}))
	}()
	<-loaded
	require.NoError(t, executor.Execute(ctx, New("fast", func(c *Context) error {
		parent, err := c.Session.Execution("parent")
		if err != nil {
			return err
		}
		c.Session.Touch(parent)
		return nil
	})))
	close(release)
	err := <-done
	assert.True(t, IsRetryable(err), "an unchanged but touched entity still checks its revision")

	stored, _ := store.Execution(ctx, "parent")
	assert.Equal(t, 2, stored.Rev)
}

func TestSession_ReadYourWrites(t *testing.T) {
	store := memory.New()
	seed(t, store,
		&entity.Execution{ID: "root", ProcessInstanceID: "root"},
		&entity.Execution{ID: "a", ProcessInstanceID: "root", ParentID: "root"},
	)
	executor := newExecutor(t, store)
	err := executor.Execute(context.Background(), New("children", func(c *Context) error {
		c.Session.InsertExecution(&entity.Execution{ID: "b", ProcessInstanceID: "root", ParentID: "root"})
		a, err := c.Session.Execution("a")
		require.NoError(t, err)
		a.IsEnded = true
		children, err := c.Session.Children("root")
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "b", children[0].ID)

		again, err := c.Session.Execution("a")
		require.NoError(t, err)
		assert.Same(t, a, again)
		return nil
	}))
	require.NoError(t, err)
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector("test", nil)
	executor := newExecutor(t, memory.New(), WithMetrics(collector), WithInterceptors(Metrics(collector)))

	attempts := 0
	err := executor.Execute(ctx, New("flaky", func(c *Context) error {
		attempts++
		if attempts < 3 {
			return dao.ErrOptimisticLock
		}
		return nil
	}), Retry(5, time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = executor.Execute(ctx, New("conflicting", func(c *Context) error {
		attempts++
		return dao.ErrOptimisticLock
	}), Retry(2, time.Millisecond))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = executor.Execute(ctx, New("domain", func(c *Context) error {
		attempts++
		return NewDomainError("invalid")
	}), Retry(5, time.Millisecond))
	assert.True(t, IsDomain(err))
	assert.Equal(t, 1, attempts, "domain errors are never retried")

	conflicts, err := testutil.GatherAndCount(collector.Registry(), "test_optimistic_lock_conflicts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, conflicts)
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(`
# HELP test_optimistic_lock_conflicts_total Total number of optimistic lock conflicts
# TYPE test_optimistic_lock_conflicts_total counter
test_optimistic_lock_conflicts_total 1
`), "test_optimistic_lock_conflicts_total"))
}

func TestErrors(t *testing.T) {
	wrapped := NewDomainError("gateway %v: %w", "g1", dao.ErrNotFound)
	assert.ErrorIs(t, wrapped, dao.ErrNotFound)
	assert.True(t, IsDomain(wrapped))
	assert.True(t, IsDomain(NewConfigurationError("missing handler")))
	assert.False(t, IsDomain(errors.New("plain")))

	handlerErr := &HandlerError{JobID: "j1", JobType: "t", Err: errors.New("boom")}
	assert.Contains(t, handlerErr.Error(), "boom")
	assert.False(t, IsDomain(handlerErr))
	assert.True(t, IsRetryable(errors.Join(errors.New("x"), dao.ErrOptimisticLock)))
}
