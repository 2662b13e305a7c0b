package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/internal/metrics"
	"github.com/viant/fluxbpm/model/graph"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/definition"
	"github.com/viant/fluxbpm/service/event"
)

// Invoker runs a command.
type Invoker func(ctx context.Context, cmd Command) error

// Interceptor wraps command execution.
type Interceptor func(ctx context.Context, cmd Command, next Invoker) error

// Executor runs commands through its interceptor chain and a final
// transaction step.
type Executor struct {
	store            dao.Store
	provider         definition.Provider
	handlers         *Handlers
	dispatcher       event.Dispatcher
	criticalDispatch bool
	logger           *zap.Logger
	metrics          *metrics.Collector
	settings         Settings
	interceptors     []Interceptor
}

// Option configures an Executor.
type Option func(e *Executor)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithHandlers(handlers *Handlers) Option {
	return func(e *Executor) {
		e.handlers = handlers
	}
}

// WithDispatcher sets the lifecycle event dispatcher. Events are dispatched
// after commit and failures are logged; a critical dispatcher runs before
// the flush instead and its failure rolls the command back.
func WithDispatcher(dispatcher event.Dispatcher, critical bool) Option {
	return func(e *Executor) {
		e.dispatcher = dispatcher
		e.criticalDispatch = critical
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Executor) {
		e.metrics = collector
	}
}

func WithSettings(settings Settings) Option {
	return func(e *Executor) {
		e.settings = settings
	}
}

// WithInterceptors appends interceptors, outermost first.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(e *Executor) {
		e.interceptors = append(e.interceptors, interceptors...)
	}
}

// NewExecutor creates an executor.
func NewExecutor(store dao.Store, provider definition.Provider, options ...Option) *Executor {
	ret := &Executor{
		store:    store,
		provider: provider,
		settings: DefaultSettings(),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.logger == nil {
		ret.logger = zap.NewNop()
	}
	if ret.handlers == nil {
		ret.handlers = NewHandlers()
	}
	return ret
}

func (e *Executor) Store() dao.Store { return e.store }

func (e *Executor) Handlers() *Handlers { return e.handlers }

func (e *Executor) Logger() *zap.Logger { return e.logger }

func (e *Executor) Metrics() *metrics.Collector { return e.metrics }

// Execute runs cmd; extra interceptors wrap the command inside the
// configured ones.
func (e *Executor) Execute(ctx context.Context, cmd Command, extra ...Interceptor) error {
	chain := make([]Interceptor, 0, len(e.interceptors)+len(extra))
	chain = append(chain, e.interceptors...)
	chain = append(chain, extra...)
	invoker := Invoker(e.invoke)
	for i := len(chain) - 1; i >= 0; i-- {
		interceptor, next := chain[i], invoker
		invoker = func(ctx context.Context, cmd Command) error {
			return interceptor(ctx, cmd, next)
		}
	}
	return invoker(ctx, cmd)
}

// invoke runs one attempt in a fresh unit of work.
func (e *Executor) invoke(ctx context.Context, cmd Command) error {
	c := &Context{
		ctx:       ctx,
		Session:   newSession(ctx, e.store),
		Agenda:    &Agenda{},
		Provider:  e.provider,
		Handlers:  e.handlers,
		Logger:    e.logger,
		Settings:  e.settings,
		processes: map[string]*graph.Process{},
	}
	if err := cmd.Execute(c); err != nil {
		return err
	}
	err := c.Agenda.Run(c, e.settings.MaxOperations)
	if e.metrics != nil {
		e.metrics.RecordOperations(c.Agenda.Executed())
	}
	if err != nil {
		return err
	}
	if e.criticalDispatch {
		if err = e.dispatch(ctx, c.Events()); err != nil {
			return err
		}
	}
	if err = e.store.Flush(ctx, c.Session.Batch()); err != nil {
		return fmt.Errorf("%v: flush failed: %w", cmd.Name(), err)
	}
	if !e.criticalDispatch {
		_ = e.dispatch(ctx, c.Events())
	}
	return nil
}

func (e *Executor) dispatch(ctx context.Context, events []*event.Event) error {
	if e.dispatcher == nil {
		return nil
	}
	for _, evt := range events {
		if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
			if e.criticalDispatch {
				return fmt.Errorf("failed to dispatch %v: %w", evt.Context.EventType, err)
			}
			e.logger.Warn("event dispatch failed", zap.String("event", evt.Context.EventType), zap.Error(err))
		}
	}
	return nil
}
