package event

import (
	"context"

	"go.uber.org/multierr"

	"github.com/viant/fluxbpm/service/messaging"
)

// Publisher dispatches events onto a queue.
type Publisher struct {
	queue messaging.Queue[Event]
}

func NewPublisher(queue messaging.Queue[Event]) *Publisher {
	return &Publisher{queue: queue}
}

// Dispatch publishes a copy of event.
func (p *Publisher) Dispatch(ctx context.Context, event *Event) error {
	return p.queue.Publish(ctx, event)
}

// Consume returns the next acknowledged event.
func (p *Publisher) Consume(ctx context.Context) (*Event, error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}

// Nop discards events.
var Nop Dispatcher = DispatcherFunc(func(context.Context, *Event) error { return nil })

// Multi dispatches every event to all dispatchers, collecting their errors.
func Multi(dispatchers ...Dispatcher) Dispatcher {
	return DispatcherFunc(func(ctx context.Context, event *Event) error {
		var errs error
		for _, dispatcher := range dispatchers {
			errs = multierr.Append(errs, dispatcher.Dispatch(ctx, event))
		}
		return errs
	})
}
