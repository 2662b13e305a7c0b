package fluxbpm

import (
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/event"
	"github.com/viant/fluxbpm/service/jobexecutor"
	"github.com/viant/fluxbpm/tracing"
)

// Option configures the Service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger; by default one is built from Config.Log.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStore sets the entity store, overriding Config.Store.
func WithStore(store dao.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithDispatcher sets the lifecycle event dispatcher, overriding
// Config.Events.
func WithDispatcher(dispatcher event.Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = dispatcher
	}
}

// WithEventHandler receives every lifecycle event through the queue
// dispatcher.
func WithEventHandler(handler func(*event.Event)) Option {
	return func(s *Service) {
		s.eventHandler = handler
	}
}

// WithMetricsRegistry registers engine metrics on registry instead of a
// private one.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Service) {
		s.metricsRegistry = registry
	}
}

// WithServiceTask registers the implementation of a service task handler.
func WithServiceTask(name string, fn command.ServiceFunc) Option {
	return func(s *Service) {
		s.serviceTasks[name] = fn
	}
}

// WithInterceptors adds command interceptors inside the built-in ones.
func WithInterceptors(interceptors ...command.Interceptor) Option {
	return func(s *Service) {
		s.interceptors = append(s.interceptors, interceptors...)
	}
}

// WithJobExecutorOptions lets the caller supply additional options passed to
// jobexecutor.New.
func WithJobExecutorOptions(opts ...jobexecutor.Option) Option {
	return func(s *Service) {
		s.jobExecutorOptions = append(s.jobExecutorOptions, opts...)
	}
}

// WithDefinitionFs sets the file system and options used to load YAML
// definitions. The built-in storage service tasks share the file system.
func WithDefinitionFs(fs afs.Service, options ...storage.Option) Option {
	return func(s *Service) {
		s.fs = fs
		s.fsOptions = options
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times; the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
