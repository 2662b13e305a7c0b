package job

import (
	"errors"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/agenda"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/runtime/subscription"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/event"
)

// Register installs the built-in job handlers.
func Register(handlers *command.Handlers, registry *subscription.Registry) {
	handlers.RegisterJob(entity.JobTypeTimerStart, &TimerStartHandler{})
	handlers.RegisterJob(entity.JobTypeAsyncContinuation, &AsyncContinuationHandler{})
	handlers.RegisterJob(entity.JobTypeTriggerTimer, &TriggerTimerHandler{registry: registry})
}

// TimerStartHandler starts a process instance from a timer start event.
type TimerStartHandler struct{}

func (h *TimerStartHandler) Execute(ctx *command.Context, job *entity.Job) error {
	process, err := ctx.Provider.Process(ctx.Ctx(), job.ProcessDefinitionID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return command.NewDomainError("timer start job %v: %w", job.ID, err)
		}
		return err
	}
	suspended, err := ctx.Provider.IsSuspended(ctx.Ctx(), process.ID)
	if err != nil {
		return err
	}
	if suspended {
		ctx.Logger.Debug("skipping timer start of suspended definition",
			zap.String("job", job.ID),
			zap.String("definition", process.ID))
		ctx.EmitJob(event.TimerStartSkipped, job, nil)
		return nil
	}
	activityID := entity.TimerStartActivity(job.Configuration)
	if activityID != "" && process.FlowElement(activityID, true) == nil {
		return command.NewDomainError("timer start job %v: unknown activity %v in %v", job.ID, activityID, process.ID)
	}
	_, err = agenda.StartProcessInstance(ctx, process, activityID, nil)
	return err
}

// AsyncContinuationHandler resumes an execution parked before an async element.
type AsyncContinuationHandler struct{}

func (h *AsyncContinuationHandler) Execute(ctx *command.Context, job *entity.Job) error {
	execution, err := ctx.Session.Execution(job.ExecutionID)
	if err != nil {
		return command.NewDomainError("async job %v: %w", job.ID, err)
	}
	if execution.IsEnded || execution.CurrentFlowElementID != job.Configuration {
		return command.NewDomainError("async job %v: execution %v no longer at %v", job.ID, execution.ID, job.Configuration)
	}
	ctx.Agenda.Plan(&agenda.ContinueProcess{ExecutionID: execution.ID, SkipAsync: true})
	return nil
}

// TriggerTimerHandler fires the timer subscription a job was scheduled for.
type TriggerTimerHandler struct {
	registry *subscription.Registry
}

func (h *TriggerTimerHandler) Execute(ctx *command.Context, job *entity.Job) error {
	if job.Configuration == "" {
		return command.NewConfigurationError("timer job %v: missing subscription id", job.ID)
	}
	_, err := h.registry.Trigger(ctx, entity.EventTypeTimer, job.Configuration, nil)
	return err
}
