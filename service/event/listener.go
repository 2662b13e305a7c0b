package event

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Listener drains a Publisher and hands each event to a handler.
type Listener struct {
	publisher *Publisher
	handler   func(*Event)
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      sync.WaitGroup
}

func NewListener(publisher *Publisher, handler func(*Event), logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{publisher: publisher, handler: handler, logger: logger}
}

// Start consumes events until Stop is called.
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done.Add(1)
	go func() {
		defer l.done.Done()
		for {
			event, err := l.publisher.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("failed to consume event", zap.Error(err))
				continue
			}
			if event != nil {
				l.handler(event)
			}
		}
	}()
}

// Stop cancels consumption and waits for the handler to return.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.done.Wait()
}
