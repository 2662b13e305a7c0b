package agenda

import (
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/event"
)

func (o *TriggerEvent) Run(ctx *command.Context) error {
	handler, ok := ctx.Handlers.Event(o.Subscription.EventType)
	if !ok {
		return command.NewConfigurationError("no handler registered for %q events", o.Subscription.EventType)
	}
	ctx.Emit(event.SubscriptionFired, nil, map[string]interface{}{
		"subscriptionId": o.Subscription.ID,
		"eventType":      o.Subscription.EventType,
		"activityId":     o.Subscription.ActivityID,
	})
	return handler.Handle(ctx, o.Subscription, o.Payload)
}

func (o *TriggerExecution) Run(ctx *command.Context) error {
	execution, err := live(ctx, o.ExecutionID)
	if err != nil {
		return err
	}
	if execution == nil || !execution.IsActive {
		return command.NewDomainError("execution %v is not waiting", o.ExecutionID)
	}
	_, element, err := ctx.FlowElement(execution)
	if err != nil {
		return err
	}
	if !element.IsWaitState() {
		return command.NewDomainError("execution %v: %v is not a wait state", execution.ID, element.ID)
	}
	if err = ctx.SetVariables(execution, o.Variables); err != nil {
		return err
	}
	PlanTakeOutgoing(ctx, execution)
	return nil
}
