package subscription

import (
	"sort"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/agenda"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/event"
)

// CatchHandler resumes an execution waiting on a message, signal or timer.
type CatchHandler struct{}

func (h *CatchHandler) Handle(ctx *command.Context, subscription *entity.EventSubscription, payload map[string]interface{}) error {
	execution, err := ctx.Session.Execution(subscription.ExecutionID)
	if err != nil {
		return command.NewDomainError("subscription %v: %w", subscription.ID, err)
	}
	process, err := ctx.Process(execution.ProcessDefinitionID)
	if err != nil {
		return err
	}
	element := process.FlowElement(subscription.ActivityID, true)
	if element == nil {
		return command.NewDomainError("subscription %v: unknown activity %v", subscription.ID, subscription.ActivityID)
	}
	waitingAt := element.ID
	if element.Kind == graph.KindBoundaryEvent {
		waitingAt = element.AttachedTo
	}
	if execution.IsEnded || execution.CurrentFlowElementID != waitingAt {
		// an earlier match of the same trigger interrupted or ended the execution
		ctx.Logger.Warn("skipping superseded subscription",
			zap.String("subscription", subscription.ID),
			zap.String("execution", execution.ID),
			zap.String("activity", element.ID))
		ctx.Emit(event.SubscriptionSkipped, execution, map[string]interface{}{
			"subscriptionId": subscription.ID,
			"eventType":      subscription.EventType,
			"activityId":     subscription.ActivityID,
		})
		return nil
	}
	if err = ctx.SetVariables(execution, payload); err != nil {
		return err
	}
	if element.Kind == graph.KindBoundaryEvent {
		return agenda.Interrupt(ctx, execution, element.ID)
	}
	agenda.PlanTakeOutgoing(ctx, execution)
	return nil
}

// CompensationHandler runs the compensation handler an execution was
// prepared for, or descends into the snapshot of a completed sub-process.
type CompensationHandler struct{}

func (h *CompensationHandler) Handle(ctx *command.Context, subscription *entity.EventSubscription, payload map[string]interface{}) error {
	if subscription.Configuration == "" {
		return command.NewDomainError("compensation subscription %v: no compensating execution", subscription.ID)
	}
	compensating, err := ctx.Session.Execution(subscription.Configuration)
	if err != nil {
		return command.NewDomainError("compensation subscription %v: %w", subscription.ID, err)
	}
	if compensating.IsEnded {
		return command.NewDomainError("compensation subscription %v: execution %v ended", subscription.ID, compensating.ID)
	}
	process, err := ctx.Process(compensating.ProcessDefinitionID)
	if err != nil {
		return err
	}
	element := process.FlowElement(subscription.ActivityID, true)
	if element == nil {
		return command.NewDomainError("compensation subscription %v: unknown activity %v", subscription.ID, subscription.ActivityID)
	}
	if element.Kind == graph.KindSubProcess && !element.ForCompensation {
		compensating.IsScope = true
		_, err = agenda.ThrowCompensation(ctx, compensating, "")
		return err
	}
	if err = ctx.SetVariables(compensating, payload); err != nil {
		return err
	}
	compensating.CurrentFlowElementID = element.ID
	compensating.IsActive = true
	ctx.Emit(event.ActivityCompensate, compensating, nil)
	ctx.Agenda.Plan(&agenda.ContinueProcess{ExecutionID: compensating.ID, InCompensation: true})
	return nil
}

// sortFIFO orders subscriptions by creation time, oldest first.
func sortFIFO(subscriptions []*entity.EventSubscription) {
	sort.SliceStable(subscriptions, func(i, j int) bool {
		if !subscriptions[i].CreateTime.Equal(subscriptions[j].CreateTime) {
			return subscriptions[i].CreateTime.Before(subscriptions[j].CreateTime)
		}
		return subscriptions[i].ID < subscriptions[j].ID
	})
}
