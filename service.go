package fluxbpm

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/fluxbpm/internal/logging"
	"github.com/viant/fluxbpm/internal/metrics"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/runtime/job"
	"github.com/viant/fluxbpm/runtime/subscription"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/dao/memory"
	"github.com/viant/fluxbpm/service/dao/sqlstore"
	"github.com/viant/fluxbpm/service/definition"
	"github.com/viant/fluxbpm/service/event"
	"github.com/viant/fluxbpm/service/jobexecutor"
	mmemory "github.com/viant/fluxbpm/service/messaging/memory"
	"github.com/viant/fluxbpm/service/task"
	"github.com/viant/fluxbpm/tracing"
)

// Service wires the engine components together.
type Service struct {
	config             *Config
	logger             *zap.Logger
	store              dao.Store
	dispatcher         event.Dispatcher
	eventHandler       func(*event.Event)
	listener           *event.Listener
	metricsRegistry    *prometheus.Registry
	collector          *metrics.Collector
	serviceTasks       map[string]command.ServiceFunc
	interceptors       []command.Interceptor
	jobExecutorOptions []jobexecutor.Option
	fs                 afs.Service
	fsOptions          []storage.Option
	closers            []func() error
	runtime            *Runtime
}

// New creates the engine; it fails on invalid configuration or when a
// configured store or dispatcher cannot be reached.
func New(options ...Option) (*Service, error) {
	s := &Service{serviceTasks: map[string]command.ServiceFunc{}}
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := s.init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	if s.logger == nil {
		logger, err := logging.New(s.config.Log)
		if err != nil {
			return err
		}
		s.logger = logger
	}
	if err := s.initTracing(); err != nil {
		return err
	}
	if s.store == nil {
		store, err := s.openStore()
		if err != nil {
			return err
		}
		s.store = store
		s.closers = append(s.closers, store.Close)
	}
	if s.dispatcher == nil {
		dispatcher, err := s.newDispatcher()
		if err != nil {
			return err
		}
		s.dispatcher = dispatcher
	}
	s.collector = metrics.NewCollector(s.config.Metrics.Namespace, s.metricsRegistry)

	handlers := command.NewHandlers()
	for name, fn := range task.Builtins(s.fs) {
		handlers.RegisterService(name, fn)
	}
	for name, fn := range s.serviceTasks {
		handlers.RegisterService(name, fn)
	}
	subscriptions := subscription.New()
	subscriptions.Register(handlers)
	job.Register(handlers, subscriptions)

	definitions := definition.NewRegistry()
	interceptors := []command.Interceptor{command.Logging(s.logger), command.Tracing(), command.Metrics(s.collector)}
	executor := command.NewExecutor(s.store, definitions,
		command.WithLogger(s.logger),
		command.WithHandlers(handlers),
		command.WithDispatcher(s.dispatcher, s.config.Events.Critical),
		command.WithMetrics(s.collector),
		command.WithSettings(command.Settings{JobRetries: s.config.Command.JobRetries, MaxOperations: s.config.Command.MaxOperations}),
		command.WithInterceptors(append(interceptors, s.interceptors...)...))

	jobOptions := []jobexecutor.Option{jobexecutor.WithConfig(s.config.JobExecutor), jobexecutor.WithLogger(s.logger)}
	jobs, err := jobexecutor.New(executor, append(jobOptions, s.jobExecutorOptions...)...)
	if err != nil {
		return err
	}
	s.runtime = &Runtime{
		definitions:   definitions,
		loader:        definition.NewLoader(s.fs, s.fsOptions...),
		executor:      executor,
		subscriptions: subscriptions,
		jobs:          jobs,
		logger:        s.logger.With(zap.String("component", "runtime")),
	}
	return nil
}

func (s *Service) initTracing() error {
	cfg := s.config.Tracing
	switch cfg.Exporter {
	case ExporterStdout:
		return tracing.Init(cfg.ServiceName, cfg.ServiceVersion, cfg.OutputFile)
	case ExporterOTLP:
		return tracing.InitOTLP(context.Background(), cfg.ServiceName, cfg.ServiceVersion, cfg.Endpoint, cfg.Insecure)
	}
	return nil
}

func (s *Service) openStore() (dao.Store, error) {
	switch s.config.Store.Driver {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverSQLite:
		return sqlstore.Open(sqlstore.DriverSQLite, s.config.Store.DSN, s.logger)
	case DriverPostgres:
		return sqlstore.Open(sqlstore.DriverPostgres, s.config.Store.DSN, s.logger)
	case DriverMySQL:
		return sqlstore.Open(sqlstore.DriverMySQL, s.config.Store.DSN, s.logger)
	}
	return nil, fmt.Errorf("unsupported store driver %q", s.config.Store.Driver)
}

func (s *Service) newDispatcher() (event.Dispatcher, error) {
	var dispatchers []event.Dispatcher
	switch s.config.Events.Dispatcher {
	case DispatcherRedis:
		redisDispatcher, err := event.NewRedisDispatcher(context.Background(), &redis.Options{Addr: s.config.Events.RedisAddr}, s.config.Events.RedisKey)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, redisDispatcher.Close)
		dispatchers = append(dispatchers, redisDispatcher)
	case DispatcherQueue:
		if s.eventHandler == nil {
			s.eventHandler = func(evt *event.Event) {
				s.logger.Debug("event", zap.String("type", evt.Context.EventType), zap.String("execution", evt.Context.ExecutionID))
			}
		}
	}
	if s.eventHandler != nil {
		queue := mmemory.NewQueue[event.Event](mmemory.DefaultConfig())
		publisher := event.NewPublisher(queue)
		s.listener = event.NewListener(publisher, s.eventHandler, s.logger)
		s.listener.Start(context.Background())
		s.closers = append(s.closers, func() error {
			s.listener.Stop()
			queue.Close()
			return nil
		})
		dispatchers = append(dispatchers, publisher)
	}
	switch len(dispatchers) {
	case 0:
		return event.Nop, nil
	case 1:
		return dispatchers[0], nil
	}
	return event.Multi(dispatchers...), nil
}

// Runtime returns the engine runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Metrics returns the registry engine metrics are registered on.
func (s *Service) Metrics() *prometheus.Registry {
	return s.collector.Registry()
}

// Close releases the store and dispatcher connections the service opened.
func (s *Service) Close() error {
	var errs error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, s.closers[i]())
	}
	s.closers = nil
	return errs
}
