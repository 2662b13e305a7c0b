package subscription

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/agenda"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
)

// Registry subscribes executions to events and fires matching subscriptions.
type Registry struct{}

// New creates a registry.
func New() *Registry {
	return &Registry{}
}

// Register installs the catch and compensation handlers.
func (r *Registry) Register(handlers *command.Handlers) {
	catch := &CatchHandler{}
	handlers.RegisterEvent(entity.EventTypeMessage, catch)
	handlers.RegisterEvent(entity.EventTypeSignal, catch)
	handlers.RegisterEvent(entity.EventTypeTimer, catch)
	handlers.RegisterEvent(entity.EventTypeCompensation, &CompensationHandler{})
}

// Subscribe records that execution waits for an event at activityID.
func (r *Registry) Subscribe(ctx *command.Context, execution *entity.Execution, eventType, activityID, configuration string) *entity.EventSubscription {
	return agenda.NewSubscription(ctx, execution, eventType, activityID, configuration)
}

// TriggerOption narrows the subscriptions a trigger matches.
type TriggerOption func(o *triggerOptions)

type triggerOptions struct {
	processInstanceID string
	activityID        string
}

// WithProcessInstance limits a trigger to one process instance.
func WithProcessInstance(id string) TriggerOption {
	return func(o *triggerOptions) {
		o.processInstanceID = id
	}
}

// WithActivity limits a trigger to one activity; for compensation it names
// the activity to compensate.
func WithActivity(id string) TriggerOption {
	return func(o *triggerOptions) {
		o.activityID = id
	}
}

// Trigger fires the subscriptions matching eventType and key. The key is a
// subscription id for timers, an event name for messages and signals, and
// the scope execution id for compensation. Every match is validated before
// any is fired; it returns the number of fired subscriptions.
func (r *Registry) Trigger(ctx *command.Context, eventType, key string, payload map[string]interface{}, options ...TriggerOption) (int, error) {
	opts := &triggerOptions{}
	for _, option := range options {
		option(opts)
	}
	var matches []*entity.EventSubscription
	switch eventType {
	case entity.EventTypeTimer:
		subscription, err := ctx.Session.Subscription(key)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				return 0, nil
			}
			return 0, err
		}
		if subscription.EventType != entity.EventTypeTimer {
			return 0, command.NewConfigurationError("subscription %v is not a timer", key)
		}
		matches = append(matches, subscription)
	case entity.EventTypeMessage, entity.EventTypeSignal:
		parameters := []*dao.Parameter{
			dao.NewParameter(dao.EventType, eventType),
			dao.NewParameter(dao.Configuration, key),
		}
		if opts.processInstanceID != "" {
			parameters = append(parameters, dao.NewParameter(dao.ProcessInstanceID, opts.processInstanceID))
		}
		if opts.activityID != "" {
			parameters = append(parameters, dao.NewParameter(dao.ActivityID, opts.activityID))
		}
		var err error
		if matches, err = ctx.Session.Subscriptions(parameters...); err != nil {
			return 0, err
		}
	case entity.EventTypeCompensation:
		scope, err := ctx.Session.Execution(key)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				return 0, command.NewDomainError("compensation scope: %w", err)
			}
			return 0, err
		}
		if scope.IsEnded {
			return 0, command.NewDomainError("compensation scope %v already ended", key)
		}
		return agenda.ThrowCompensation(ctx, scope, opts.activityID)
	default:
		return 0, command.NewConfigurationError("unsupported event type %q", eventType)
	}
	if err := validate(ctx, matches); err != nil {
		return 0, command.NewDomainError("failed to trigger %v %q: %w", eventType, key, err)
	}
	sortFIFO(matches)
	for _, subscription := range matches {
		ctx.Session.DeleteSubscription(subscription)
		ctx.Agenda.Plan(&agenda.TriggerEvent{Subscription: subscription.Clone(), Payload: payload})
	}
	return len(matches), nil
}

// validate checks that every matched subscription still resolves to a live
// execution and a known activity.
func validate(ctx *command.Context, subscriptions []*entity.EventSubscription) error {
	var errs error
	for _, subscription := range subscriptions {
		execution, err := ctx.Session.Execution(subscription.ExecutionID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if execution.IsEnded {
			errs = multierr.Append(errs, fmt.Errorf("subscription %v: execution %v ended", subscription.ID, execution.ID))
			continue
		}
		process, err := ctx.Process(execution.ProcessDefinitionID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if process.FlowElement(subscription.ActivityID, true) == nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %v: unknown activity %v", subscription.ID, subscription.ActivityID))
		}
	}
	return errs
}
