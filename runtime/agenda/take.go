package agenda

import (
	"errors"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/runtime/evaluator"
	"github.com/viant/fluxbpm/service/event"
)

var conditions = evaluator.New()

var (
	// ErrAmbiguousGateway is wrapped when more than one guard of an exclusive gateway holds.
	ErrAmbiguousGateway = errors.New("more than one outgoing flow condition is true")
	// ErrNoOutgoingFlow is wrapped when no guard of an exclusive gateway holds and it has no default flow.
	ErrNoOutgoingFlow = errors.New("no outgoing flow can be taken")
)

func (o *TakeOutgoingFlows) Run(ctx *command.Context) error {
	execution, err := live(ctx, o.ExecutionID)
	if err != nil || execution == nil {
		return err
	}
	_, element, err := ctx.FlowElement(execution)
	if err != nil {
		return err
	}
	if err = removeWaits(ctx, execution); err != nil {
		return err
	}
	if err = recordCompensation(ctx, execution, element); err != nil {
		return err
	}
	flows, err := selectFlows(ctx, execution, element)
	if err != nil {
		return err
	}
	ctx.Emit(event.ActivityCompleted, execution, nil)
	switch len(flows) {
	case 0:
		PlanEnd(ctx, execution)
	case 1:
		execution.CurrentFlowElementID = flows[0].TargetRef
		execution.IsActive = true
		PlanContinue(ctx, execution)
	default:
		execution.IsActive = false
		for _, flow := range flows {
			PlanContinue(ctx, createChild(ctx, execution, flow.TargetRef, true))
		}
	}
	return nil
}

// recordCompensation subscribes the compensation handler of a completed
// activity on its scope.
func recordCompensation(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	handler := element.CompensatedBy()
	if handler == nil || element.ForCompensation {
		return nil
	}
	scope, err := scopeOf(ctx, execution)
	if err != nil {
		return err
	}
	NewSubscription(ctx, scope, entity.EventTypeCompensation, handler.ID, "")
	return nil
}

func selectFlows(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) ([]*graph.SequenceFlow, error) {
	if element.Kind == graph.KindParallelGateway {
		return element.Outgoing, nil
	}
	var variables map[string]interface{}
	holds := func(flow *graph.SequenceFlow) (bool, error) {
		if flow.Condition == "" {
			return true, nil
		}
		if variables == nil {
			var err error
			if variables, err = ctx.Variables(execution); err != nil {
				return false, err
			}
		}
		ok, err := conditions.Condition(flow.Condition, variables)
		if err != nil {
			return false, command.NewDomainError("flow %v: %w", flow.ID, err)
		}
		return ok, nil
	}
	var selected []*graph.SequenceFlow
	for _, flow := range element.Outgoing {
		if flow.ID == element.Default {
			continue
		}
		ok, err := holds(flow)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, flow)
		}
	}
	if element.Kind == graph.KindExclusiveGateway && len(selected) > 1 {
		return nil, command.NewDomainError("gateway %v: %w", element.ID, ErrAmbiguousGateway)
	}
	if len(selected) == 0 {
		if defaultFlow := element.DefaultFlow(); defaultFlow != nil {
			return []*graph.SequenceFlow{defaultFlow}, nil
		}
		if element.Kind == graph.KindExclusiveGateway {
			return nil, command.NewDomainError("gateway %v: %w", element.ID, ErrNoOutgoingFlow)
		}
	}
	return selected, nil
}
