package agenda

import (
	"errors"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
)

// ContinueProcess executes the behaviour of the current flow element.
type ContinueProcess struct {
	ExecutionID    string
	InCompensation bool
	// SkipAsync runs an async element inline; set when resuming from its job.
	SkipAsync bool
}

func (o *ContinueProcess) Name() string { return "continueProcess" }

// TakeOutgoingFlows leaves the current element.
type TakeOutgoingFlows struct {
	ExecutionID string
}

func (o *TakeOutgoingFlows) Name() string { return "takeOutgoingFlows" }

// EndExecution ends a branch and propagates completion to its parent.
type EndExecution struct {
	ExecutionID string
}

func (o *EndExecution) Name() string { return "endExecution" }

// DestroyScope ends a sub-process scope and resumes the waiting parent.
type DestroyScope struct {
	ExecutionID string
}

func (o *DestroyScope) Name() string { return "destroyScope" }

// TriggerEvent runs the handler registered for a fired subscription.
type TriggerEvent struct {
	Subscription *entity.EventSubscription
	Payload      map[string]interface{}
}

func (o *TriggerEvent) Name() string { return "triggerEvent" }

// TriggerExecution resumes an execution waiting in a task.
type TriggerExecution struct {
	ExecutionID string
	Variables   map[string]interface{}
}

func (o *TriggerExecution) Name() string { return "triggerExecution" }

// PlanContinue plans ContinueProcess for an execution.
func PlanContinue(ctx *command.Context, execution *entity.Execution) {
	ctx.Agenda.Plan(&ContinueProcess{ExecutionID: execution.ID})
}

// PlanTakeOutgoing plans TakeOutgoingFlows for an execution.
func PlanTakeOutgoing(ctx *command.Context, execution *entity.Execution) {
	ctx.Agenda.Plan(&TakeOutgoingFlows{ExecutionID: execution.ID})
}

// PlanEnd plans EndExecution for an execution.
func PlanEnd(ctx *command.Context, execution *entity.Execution) {
	ctx.Agenda.Plan(&EndExecution{ExecutionID: execution.ID})
}

// live loads an execution; ended executions yield nil without error since
// operations planned before an interrupt become stale.
func live(ctx *command.Context, id string) (*entity.Execution, error) {
	execution, err := ctx.Session.Execution(id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, command.NewDomainError("%w", err)
		}
		return nil, err
	}
	if execution.IsEnded {
		return nil, nil
	}
	return execution, nil
}
