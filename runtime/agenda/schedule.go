package agenda

import (
	"time"

	"github.com/viant/fluxbpm/internal/clock"
	"github.com/viant/fluxbpm/internal/idgen"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/runtime/command"
)

// NewSubscription inserts an event subscription owned by execution.
func NewSubscription(ctx *command.Context, execution *entity.Execution, eventType, activityID, configuration string) *entity.EventSubscription {
	subscription := &entity.EventSubscription{
		ID:                idgen.New(),
		ExecutionID:       execution.ID,
		ProcessInstanceID: execution.ProcessInstanceID,
		EventType:         eventType,
		ActivityID:        activityID,
		Configuration:     configuration,
		CreateTime:        clock.Now(),
	}
	ctx.Session.InsertSubscription(subscription)
	return subscription
}

// ScheduleJob inserts a job; execution may be nil for definition level jobs.
func ScheduleJob(ctx *command.Context, jobType string, execution *entity.Execution, processDefinitionID, configuration string, dueDate time.Time) *entity.Job {
	job := &entity.Job{
		ID:                  idgen.New(),
		Type:                jobType,
		ProcessDefinitionID: processDefinitionID,
		Configuration:       configuration,
		DueDate:             dueDate,
		Retries:             ctx.Settings.JobRetries,
		CreateTime:          clock.Now(),
	}
	if execution != nil {
		job.ExecutionID = execution.ID
		job.ProcessInstanceID = execution.ProcessInstanceID
		job.ProcessDefinitionID = execution.ProcessDefinitionID
	}
	ctx.Session.InsertJob(job)
	return job
}

// subscribe registers what element waits for on behalf of execution.
func subscribe(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	definition := element.Event
	switch definition.Type {
	case graph.EventTimer:
		dueDate, err := definition.DueDate(clock.Now())
		if err != nil {
			return command.NewConfigurationError("timer %v: %w", element.ID, err)
		}
		formula := definition.TimeDuration
		if formula == "" {
			formula = definition.TimeDate
		}
		subscription := NewSubscription(ctx, execution, entity.EventTypeTimer, element.ID, formula)
		ScheduleJob(ctx, entity.JobTypeTriggerTimer, execution, "", subscription.ID, dueDate)
	case graph.EventMessage, graph.EventSignal:
		if definition.EventName == "" {
			return command.NewConfigurationError("%v event %v: missing event name", definition.Type, element.ID)
		}
		NewSubscription(ctx, execution, definition.Type, element.ID, definition.EventName)
	default:
		return command.NewConfigurationError("element %v: unsupported catch event %q", element.ID, definition.Type)
	}
	return nil
}

// subscribeBoundaries registers the non-compensation boundary events of an activity.
func subscribeBoundaries(ctx *command.Context, execution *entity.Execution, element *graph.FlowElement) error {
	for _, boundary := range element.Boundaries {
		if boundary.Event == nil || boundary.IsEvent(graph.EventCompensation) {
			continue
		}
		if err := subscribe(ctx, execution, boundary); err != nil {
			return err
		}
	}
	return nil
}
