package agenda

import (
	"github.com/viant/fluxbpm/internal/clock"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/event"
)

func (o *ContinueProcess) Run(ctx *command.Context) error {
	execution, err := live(ctx, o.ExecutionID)
	if err != nil || execution == nil {
		return err
	}
	_, element, err := ctx.FlowElement(execution)
	if err != nil {
		return err
	}
	if element.Async && !o.SkipAsync && !o.InCompensation {
		ScheduleJob(ctx, entity.JobTypeAsyncContinuation, execution, "", element.ID, clock.Now())
		return nil
	}
	if element.Async {
		if err = dropAsyncJobs(ctx, execution, element.ID); err != nil {
			return err
		}
	}
	ctx.Emit(event.ActivityStarted, execution, nil)
	switch element.Kind {
	case graph.KindStartEvent, graph.KindTask, graph.KindBoundaryEvent, graph.KindExclusiveGateway:
		PlanTakeOutgoing(ctx, execution)
	case graph.KindIntermediateThrowEvent:
		if err = throw(ctx, execution, element); err != nil {
			return err
		}
		PlanTakeOutgoing(ctx, execution)
	case graph.KindEndEvent:
		if err = throw(ctx, execution, element); err != nil {
			return err
		}
		PlanEnd(ctx, execution)
	case graph.KindServiceTask:
		return runService(ctx, execution, element)
	case graph.KindUserTask, graph.KindReceiveTask, graph.KindIntermediateCatchEvent:
		return wait(ctx, execution, element)
	case graph.KindParallelGateway:
		return join(ctx, execution, element)
	case graph.KindSubProcess:
		return enterSubProcess(ctx, execution, element)
	default:
		return command.NewDomainError("element %v: unsupported kind %q", element.ID, element.Kind)
	}
	return nil
}

// dropAsyncJobs deletes the async continuation jobs parked on elementID
// once the element runs, so that no job runs it a second time.
func dropAsyncJobs(ctx *command.Context, execution *entity.Execution, elementID string) error {
	jobs, err := ctx.Session.Jobs(dao.NewParameter(dao.ExecutionID, execution.ID), dao.NewParameter(dao.Type, entity.JobTypeAsyncContinuation))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.Configuration == elementID {
			ctx.Session.DeleteJob(job)
		}
	}
	return nil
}

// throw fires a compensation throw event; other throw events pass through.
func throw(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	if !element.IsEvent(graph.EventCompensation) {
		return nil
	}
	scope, err := scopeOf(ctx, execution)
	if err != nil {
		return err
	}
	_, err = ThrowCompensation(ctx, scope, element.Event.ActivityRef)
	return err
}

func runService(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	if element.Handler != "" {
		fn, ok := ctx.Handlers.Service(element.Handler)
		if !ok {
			return command.NewConfigurationError("service task %v: unknown handler %q", element.ID, element.Handler)
		}
		variables, err := ctx.Variables(execution)
		if err != nil {
			return err
		}
		output, err := fn(ctx, execution, variables)
		if err != nil {
			return err
		}
		if err = ctx.SetVariables(execution, output); err != nil {
			return err
		}
	}
	PlanTakeOutgoing(ctx, execution)
	return nil
}

// wait parks an execution in a wait state, subscribing to the events that
// can resume it.
func wait(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	if element.Event != nil {
		if err := subscribe(ctx, execution, element); err != nil {
			return err
		}
	} else if element.Kind == graph.KindIntermediateCatchEvent {
		PlanTakeOutgoing(ctx, execution)
		return nil
	}
	return subscribeBoundaries(ctx, execution, element)
}

// join synchronizes the concurrent branches arriving at a parallel gateway.
// Every arrival touches the shared parent, so two arrivals committing
// concurrently conflict on its revision and one of them re-counts.
func join(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	if len(element.Incoming) <= 1 || !execution.IsConcurrent || execution.ParentID == "" {
		PlanTakeOutgoing(ctx, execution)
		return nil
	}
	execution.IsActive = false
	parent, err := ctx.Session.Execution(execution.ParentID)
	if err != nil {
		return err
	}
	ctx.Session.Touch(parent)
	siblings, err := liveChildren(ctx, parent)
	if err != nil {
		return err
	}
	var arrived []*entity.Execution
	for _, sibling := range siblings {
		if !sibling.IsActive && sibling.CurrentFlowElementID == element.ID {
			arrived = append(arrived, sibling)
		}
	}
	if len(arrived) < len(element.Incoming) {
		return nil
	}
	for _, sibling := range arrived {
		if sibling.ID == execution.ID {
			continue
		}
		if err = endExecution(ctx, sibling); err != nil {
			return err
		}
	}
	if len(siblings) == len(arrived) {
		if err = endExecution(ctx, execution); err != nil {
			return err
		}
		parent.CurrentFlowElementID = element.ID
		parent.IsActive = true
		PlanTakeOutgoing(ctx, parent)
		return nil
	}
	execution.IsActive = true
	PlanTakeOutgoing(ctx, execution)
	return nil
}

func enterSubProcess(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	start := element.StartElement()
	if start == nil {
		return command.NewDomainError("sub-process %v: missing start event", element.ID)
	}
	execution.IsActive = false
	child := createChild(ctx, execution, start.ID, false)
	child.IsScope = true
	if err := subscribeBoundaries(ctx, execution, element); err != nil {
		return err
	}
	PlanContinue(ctx, child)
	return nil
}
