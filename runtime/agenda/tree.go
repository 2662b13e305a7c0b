package agenda

import (
	"errors"

	"github.com/viant/fluxbpm/internal/idgen"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
)

// createChild creates an active child execution positioned on elementID.
func createChild(ctx *command.Context, parent *entity.Execution, elementID string, concurrent bool) *entity.Execution {
	child := &entity.Execution{
		ID:                   idgen.New(),
		ProcessInstanceID:    parent.ProcessInstanceID,
		ProcessDefinitionID:  parent.ProcessDefinitionID,
		ParentID:             parent.ID,
		CurrentFlowElementID: elementID,
		IsActive:             true,
		IsConcurrent:         concurrent,
	}
	ctx.Session.InsertExecution(child)
	return child
}

// endExecution ends an execution and its descendants, removing their
// subscriptions and jobs. Event scope children are skipped; the ones an
// ended execution still references through a compensation subscription
// end with it. DestroyScope moves those subscriptions to a snapshot first.
func endExecution(ctx *command.Context, execution *entity.Execution) error {
	children, err := ctx.Session.Children(execution.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsEventScope {
			continue
		}
		if err = endExecution(ctx, child); err != nil {
			return err
		}
	}
	if err = dropCompensation(ctx, execution); err != nil {
		return err
	}
	if err = removeWaits(ctx, execution); err != nil {
		return err
	}
	execution.IsEnded = true
	execution.IsActive = false
	return nil
}

// dropCompensation deletes the compensation subscriptions owned by an
// ending execution and ends the snapshots they point to.
func dropCompensation(ctx *command.Context, execution *entity.Execution) error {
	subscriptions, err := ctx.Session.Subscriptions(dao.NewParameter(dao.ExecutionID, execution.ID), dao.NewParameter(dao.EventType, entity.EventTypeCompensation))
	if err != nil {
		return err
	}
	for _, subscription := range subscriptions {
		ctx.Session.DeleteSubscription(subscription)
		if subscription.Configuration == "" {
			continue
		}
		snapshot, err := ctx.Session.Execution(subscription.Configuration)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				continue
			}
			return err
		}
		if snapshot.IsEventScope && !snapshot.IsEnded {
			if err = endExecution(ctx, snapshot); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeWaits deletes the non-compensation subscriptions and the jobs owned by an execution.
func removeWaits(ctx *command.Context, execution *entity.Execution) error {
	subscriptions, err := ctx.Session.Subscriptions(dao.NewParameter(dao.ExecutionID, execution.ID))
	if err != nil {
		return err
	}
	for _, subscription := range subscriptions {
		if subscription.EventType != entity.EventTypeCompensation {
			ctx.Session.DeleteSubscription(subscription)
		}
	}
	jobs, err := ctx.Session.Jobs(dao.NewParameter(dao.ExecutionID, execution.ID))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		ctx.Session.DeleteJob(job)
	}
	return nil
}

// scopeOf returns the nearest scope execution, the execution itself included.
func scopeOf(ctx *command.Context, execution *entity.Execution) (*entity.Execution, error) {
	current := execution
	for !current.IsScope && current.ParentID != "" {
		parent, err := ctx.Session.Execution(current.ParentID)
		if err != nil {
			return nil, err
		}
		current = parent
	}
	return current, nil
}

// liveChildren returns the non-ended children that still carry a token.
func liveChildren(ctx *command.Context, execution *entity.Execution) ([]*entity.Execution, error) {
	children, err := ctx.Session.Children(execution.ID)
	if err != nil {
		return nil, err
	}
	var result []*entity.Execution
	for _, child := range children {
		if !child.IsEventScope {
			result = append(result, child)
		}
	}
	return result, nil
}

// completeParent plans the completion of a parked parent once its last
// child ended.
func completeParent(ctx *command.Context, parentID string) error {
	parent, err := ctx.Session.Execution(parentID)
	if err != nil {
		return err
	}
	if parent.IsEnded || parent.IsActive {
		return nil
	}
	children, err := liveChildren(ctx, parent)
	if err != nil || len(children) > 0 {
		return err
	}
	if parent.IsEventScope {
		return endExecution(ctx, parent)
	}
	PlanEnd(ctx, parent)
	return nil
}

// endProcessInstance ends every execution of the instance and deletes all
// of its subscriptions and jobs.
func endProcessInstance(ctx *command.Context, root *entity.Execution, eventType string) error {
	executions, err := ctx.Session.Executions(dao.NewParameter(dao.ProcessInstanceID, root.ID), dao.NewFlag(dao.IsEnded, false))
	if err != nil {
		return err
	}
	for _, execution := range executions {
		execution.IsEnded = true
		execution.IsActive = false
	}
	subscriptions, err := ctx.Session.Subscriptions(dao.NewParameter(dao.ProcessInstanceID, root.ID))
	if err != nil {
		return err
	}
	for _, subscription := range subscriptions {
		ctx.Session.DeleteSubscription(subscription)
	}
	jobs, err := ctx.Session.Jobs(dao.NewParameter(dao.ProcessInstanceID, root.ID))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		ctx.Session.DeleteJob(job)
	}
	ctx.Emit(eventType, root, nil)
	return nil
}
