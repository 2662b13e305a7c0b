package fluxbpm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/internal/clock"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/agenda"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/runtime/job"
	"github.com/viant/fluxbpm/runtime/subscription"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/definition"
	"github.com/viant/fluxbpm/service/jobexecutor"
)

// Runtime represents the process engine runtime
type Runtime struct {
	definitions   *definition.Registry
	loader        *definition.Loader
	executor      *command.Executor
	subscriptions *subscription.Registry
	jobs          *jobexecutor.Service
	logger        *zap.Logger
}

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

// Deploy registers a definition and schedules its timer start events. Timer
// start jobs of the definition itself and of the previously latest version
// of the same key are removed first.
func (r *Runtime) Deploy(ctx context.Context, process *graph.Process) error {
	previous, err := r.definitions.Latest(ctx, process.Key)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}
	if err = r.definitions.Deploy(process); err != nil {
		return err
	}
	timers := process.TimerStartEvents()
	if len(timers) == 0 && previous == nil {
		return nil
	}
	return r.executor.Execute(ctx, command.New("deploy", func(c *command.Context) error {
		replaced := []string{process.ID}
		if previous != nil && previous.ID != process.ID && previous.Version < process.Version {
			replaced = append(replaced, previous.ID)
		}
		for _, definitionID := range replaced {
			stale, err := c.Session.Jobs(dao.NewParameter(dao.ProcessDefinitionID, definitionID), dao.NewParameter(dao.Type, entity.JobTypeTimerStart))
			if err != nil {
				return err
			}
			for _, staleJob := range stale {
				c.Session.DeleteJob(staleJob)
			}
		}
		for _, element := range timers {
			dueDate, err := element.Event.DueDate(clock.Now())
			if err != nil {
				return command.NewConfigurationError("timer start %v: %w", element.ID, err)
			}
			job.Schedule(c, entity.JobTypeTimerStart, nil, process.ID, entity.TimerStartConfiguration(element.ID), dueDate)
		}
		return nil
	}))
}

// DeployURL loads a YAML definition from any afs location and deploys it.
func (r *Runtime) DeployURL(ctx context.Context, URL string) (*graph.Process, error) {
	process, err := r.loader.Load(ctx, URL)
	if err != nil {
		return nil, err
	}
	if err = r.Deploy(ctx, process); err != nil {
		return nil, err
	}
	return process, nil
}

// Definition returns a deployed definition.
func (r *Runtime) Definition(ctx context.Context, id string) (*graph.Process, error) {
	return r.definitions.Process(ctx, id)
}

// Suspend blocks new instances of a definition, including timer starts.
func (r *Runtime) Suspend(_ context.Context, definitionID string) error {
	return r.definitions.Suspend(definitionID)
}

// Activate lifts a suspension.
func (r *Runtime) Activate(_ context.Context, definitionID string) error {
	return r.definitions.Activate(definitionID)
}

// ---------------------------------------------------------------------------
// Instances
// ---------------------------------------------------------------------------

// StartOption customises StartProcessInstance.
type StartOption func(o *startOptions)

type startOptions struct {
	initialElementID string
}

// WithInitialElement starts the instance at the given element instead of
// the none start event.
func WithInitialElement(id string) StartOption {
	return func(o *startOptions) {
		o.initialElementID = id
	}
}

// StartProcessInstance starts a new instance of a definition and runs it up
// to its first wait states. The returned root reflects the committed state.
func (r *Runtime) StartProcessInstance(ctx context.Context, definitionID string, variables map[string]interface{}, options ...StartOption) (*entity.Execution, error) {
	opts := &startOptions{}
	for _, option := range options {
		option(opts)
	}
	var rootID string
	err := r.executor.Execute(ctx, command.New("startProcessInstance", func(c *command.Context) error {
		process, err := c.Process(definitionID)
		if err != nil {
			return err
		}
		suspended, err := c.Provider.IsSuspended(c.Ctx(), process.ID)
		if err != nil {
			return err
		}
		if suspended {
			return command.NewDomainError("process definition %v is suspended", process.ID)
		}
		root, err := agenda.StartProcessInstance(c, process, opts.initialElementID, variables)
		if err != nil {
			return err
		}
		rootID = root.ID
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return r.Execution(ctx, rootID)
}

// StartProcessInstanceByKey starts the latest version of a definition key.
func (r *Runtime) StartProcessInstanceByKey(ctx context.Context, key string, variables map[string]interface{}, options ...StartOption) (*entity.Execution, error) {
	process, err := r.definitions.Latest(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.StartProcessInstance(ctx, process.ID, variables, options...)
}

// TriggerEvent delivers a message, signal, timer or compensation trigger.
// It returns the number of fired subscriptions.
func (r *Runtime) TriggerEvent(ctx context.Context, eventType, key string, payload map[string]interface{}, options ...subscription.TriggerOption) (int, error) {
	var fired int
	err := r.executor.Execute(ctx, command.New("triggerEvent", func(c *command.Context) error {
		var err error
		fired, err = r.subscriptions.Trigger(c, eventType, key, payload, options...)
		return err
	}))
	return fired, err
}

// CompleteTask resumes an execution waiting in a task, merging variables
// into the process instance.
func (r *Runtime) CompleteTask(ctx context.Context, executionID string, variables map[string]interface{}) error {
	return r.executor.Execute(ctx, command.New("completeTask", func(c *command.Context) error {
		c.Agenda.Plan(&agenda.TriggerExecution{ExecutionID: executionID, Variables: variables})
		return nil
	}))
}

// ContinueExecution re-runs the behaviour of the element an active
// execution is positioned on, skipping its async boundary.
func (r *Runtime) ContinueExecution(ctx context.Context, executionID string) error {
	return r.executor.Execute(ctx, command.New("continueExecution", func(c *command.Context) error {
		execution, err := c.Session.Execution(executionID)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				return command.NewDomainError("%w", err)
			}
			return err
		}
		if execution.IsEnded || !execution.IsActive {
			return command.NewDomainError("execution %v is not active", executionID)
		}
		c.Agenda.Plan(&agenda.ContinueProcess{ExecutionID: execution.ID, SkipAsync: true})
		return nil
	}))
}

// CancelProcessInstance ends an instance with all of its executions,
// subscriptions and jobs.
func (r *Runtime) CancelProcessInstance(ctx context.Context, processInstanceID string) error {
	return r.executor.Execute(ctx, command.New("cancelProcessInstance", func(c *command.Context) error {
		return agenda.CancelProcessInstance(c, processInstanceID)
	}))
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

// ScheduleJob inserts a job for an execution, or a definition level job when
// executionID is empty.
func (r *Runtime) ScheduleJob(ctx context.Context, jobType, executionID, processDefinitionID, configuration string, dueDate time.Time) (*entity.Job, error) {
	if _, ok := r.executor.Handlers().Job(jobType); !ok {
		return nil, command.NewConfigurationError("no handler registered for %q jobs", jobType)
	}
	var scheduled *entity.Job
	err := r.executor.Execute(ctx, command.New("scheduleJob", func(c *command.Context) error {
		var execution *entity.Execution
		if executionID != "" {
			var err error
			if execution, err = c.Session.Execution(executionID); err != nil {
				return command.NewDomainError("%w", err)
			}
		}
		scheduled = job.Schedule(c, jobType, execution, processDefinitionID, configuration, dueDate)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return scheduled, nil
}

// Tick runs one acquisition round of the job executor synchronously.
func (r *Runtime) Tick(ctx context.Context) (int, error) {
	return r.jobs.Tick(ctx)
}

// Start launches the background job executor.
func (r *Runtime) Start(ctx context.Context) error {
	return r.jobs.Start(ctx)
}

// Shutdown stops the background job executor.
func (r *Runtime) Shutdown(ctx context.Context) error {
	return r.jobs.Shutdown(ctx)
}

// RetryDeadJob returns a dead job to the queue; retries <= 0 uses the
// default budget.
func (r *Runtime) RetryDeadJob(ctx context.Context, jobID string, retries int) error {
	return r.executor.Execute(ctx, command.New("retryDeadJob", func(c *command.Context) error {
		return job.RetryDead(c, jobID, retries)
	}))
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (r *Runtime) Execution(ctx context.Context, id string) (*entity.Execution, error) {
	return r.executor.Store().Execution(ctx, id)
}

// Executions lists the executions of a process instance, ended ones included.
func (r *Runtime) Executions(ctx context.Context, processInstanceID string) ([]*entity.Execution, error) {
	return r.executor.Store().Executions(ctx, dao.NewParameter(dao.ProcessInstanceID, processInstanceID))
}

// ActiveExecutions lists the non-ended executions positioned on activityID.
func (r *Runtime) ActiveExecutions(ctx context.Context, processInstanceID, activityID string) ([]*entity.Execution, error) {
	return r.executor.Store().Executions(ctx,
		dao.NewParameter(dao.ProcessInstanceID, processInstanceID),
		dao.NewParameter(dao.CurrentFlowElementID, activityID),
		dao.NewFlag(dao.IsEnded, false))
}

func (r *Runtime) Subscriptions(ctx context.Context, processInstanceID string) ([]*entity.EventSubscription, error) {
	return r.executor.Store().Subscriptions(ctx, dao.NewParameter(dao.ProcessInstanceID, processInstanceID))
}

// Jobs lists the jobs of a process instance.
func (r *Runtime) Jobs(ctx context.Context, processInstanceID string) ([]*entity.Job, error) {
	return r.executor.Store().Jobs(ctx, dao.NewParameter(dao.ProcessInstanceID, processInstanceID))
}

// DefinitionJobs lists the jobs scheduled for a definition.
func (r *Runtime) DefinitionJobs(ctx context.Context, definitionID string) ([]*entity.Job, error) {
	return r.executor.Store().Jobs(ctx, dao.NewParameter(dao.ProcessDefinitionID, definitionID))
}

func (r *Runtime) DeadJobs(ctx context.Context) ([]*entity.Job, error) {
	return r.executor.Store().Jobs(ctx, dao.NewFlag(dao.Dead, true))
}

// WaitForEnd polls until a process instance ended or timeout elapsed.
func (r *Runtime) WaitForEnd(ctx context.Context, processInstanceID string, timeout time.Duration) (*entity.Execution, error) {
	deadline := time.Now().Add(timeout)
	for {
		root, err := r.Execution(ctx, processInstanceID)
		if err != nil {
			return nil, err
		}
		if root.IsEnded {
			return root, nil
		}
		if time.Now().After(deadline) {
			return root, fmt.Errorf("process instance %v did not end within %v", processInstanceID, timeout)
		}
		select {
		case <-ctx.Done():
			return root, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
