package agenda

import (
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/event"
)

func (o *EndExecution) Run(ctx *command.Context) error {
	execution, err := live(ctx, o.ExecutionID)
	if err != nil || execution == nil {
		return err
	}
	if execution.IsProcessInstance() {
		children, err := liveChildren(ctx, execution)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			// compensation handlers are still running
			execution.IsActive = false
			return nil
		}
		return endProcessInstance(ctx, execution, event.ProcessCompleted)
	}
	if execution.IsScope && !execution.IsEventScope {
		ctx.Agenda.Plan(&DestroyScope{ExecutionID: execution.ID})
		return nil
	}
	if err = endExecution(ctx, execution); err != nil {
		return err
	}
	return completeParent(ctx, execution.ParentID)
}

func (o *DestroyScope) Run(ctx *command.Context) error {
	scope, err := live(ctx, o.ExecutionID)
	if err != nil || scope == nil {
		return err
	}
	parent, err := ctx.Session.Execution(scope.ParentID)
	if err != nil {
		return err
	}
	subProcessID := parent.CurrentFlowElementID
	compensations, err := ctx.Session.Subscriptions(dao.NewParameter(dao.ExecutionID, scope.ID), dao.NewParameter(dao.EventType, entity.EventTypeCompensation))
	if err != nil {
		return err
	}
	if len(compensations) > 0 {
		outer, err := scopeOf(ctx, parent)
		if err != nil {
			return err
		}
		snapshot := createChild(ctx, outer, subProcessID, false)
		snapshot.IsScope = true
		snapshot.IsEventScope = true
		snapshot.IsActive = false
		for _, subscription := range compensations {
			subscription.ExecutionID = snapshot.ID
		}
		NewSubscription(ctx, outer, entity.EventTypeCompensation, subProcessID, snapshot.ID)
	}
	if err = endExecution(ctx, scope); err != nil {
		return err
	}
	if parent.IsEnded {
		return nil
	}
	parent.IsActive = true
	PlanTakeOutgoing(ctx, parent)
	return nil
}

// CancelProcessInstance ends a running process instance with all of its
// executions, subscriptions and jobs.
func CancelProcessInstance(ctx *command.Context, processInstanceID string) error {
	root, err := live(ctx, processInstanceID)
	if err != nil {
		return err
	}
	if root == nil {
		return command.NewDomainError("process instance %v already ended", processInstanceID)
	}
	if !root.IsProcessInstance() {
		return command.NewDomainError("execution %v is not a process instance", processInstanceID)
	}
	return endProcessInstance(ctx, root, event.ProcessCancelled)
}

// Interrupt moves an execution waiting on an activity to one of its
// boundary events, ending whatever ran inside the activity.
func Interrupt(ctx *command.Context, execution *entity.Execution, boundaryID string) error {
	children, err := liveChildren(ctx, execution)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err = endExecution(ctx, child); err != nil {
			return err
		}
	}
	if err = removeWaits(ctx, execution); err != nil {
		return err
	}
	execution.CurrentFlowElementID = boundaryID
	execution.IsActive = true
	PlanTakeOutgoing(ctx, execution)
	return nil
}
