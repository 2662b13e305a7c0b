package fluxbpm

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/viant/fluxbpm/internal/logging"
	"github.com/viant/fluxbpm/service/jobexecutor"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Event dispatchers.
const (
	DispatcherNone  = "none"
	DispatcherQueue = "queue"
	DispatcherRedis = "redis"
)

// Tracing exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON or YAML; LoadConfig starts from DefaultConfig so
// omitted fields keep their defaults.
type Config struct {
	Store       StoreConfig        `json:"store" yaml:"store"`
	JobExecutor jobexecutor.Config `json:"jobExecutor" yaml:"jobExecutor"`
	Command     CommandConfig      `json:"command" yaml:"command"`
	Events      EventsConfig       `json:"events" yaml:"events"`
	Log         logging.Config     `json:"log" yaml:"log"`
	Tracing     TracingConfig      `json:"tracing" yaml:"tracing"`
	Metrics     MetricsConfig      `json:"metrics" yaml:"metrics"`
}

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type CommandConfig struct {
	// JobRetries is the retry budget of new jobs.
	JobRetries int `json:"jobRetries" yaml:"jobRetries"`
	// MaxOperations bounds the agenda of one command; 0 is unlimited.
	MaxOperations int `json:"maxOperations" yaml:"maxOperations"`
}

type EventsConfig struct {
	Dispatcher string `json:"dispatcher" yaml:"dispatcher"`
	RedisAddr  string `json:"redisAddr" yaml:"redisAddr"`
	RedisKey   string `json:"redisKey" yaml:"redisKey"`
	// Critical dispatches before commit and fails the command on error.
	Critical bool `json:"critical" yaml:"critical"`
}

type TracingConfig struct {
	Exporter       string `json:"exporter" yaml:"exporter"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	Insecure       bool   `json:"insecure" yaml:"insecure"`
	OutputFile     string `json:"outputFile" yaml:"outputFile"`
	ServiceName    string `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string `json:"serviceVersion" yaml:"serviceVersion"`
}

type MetricsConfig struct {
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DefaultConfig returns an in-memory engine configuration. Callers may
// modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Store:       StoreConfig{Driver: DriverMemory},
		JobExecutor: jobexecutor.DefaultConfig(),
		Command:     CommandConfig{JobRetries: 3, MaxOperations: 1000000},
		Events:      EventsConfig{Dispatcher: DispatcherNone},
		Log:         logging.Config{Level: "info"},
		Tracing:     TracingConfig{Exporter: ExporterNone, ServiceName: "fluxbpm"},
		Metrics:     MetricsConfig{Namespace: "fluxbpm"},
	}
}

// LoadConfig decodes YAML on top of DefaultConfig and validates the result.
func LoadConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverMySQL:
		if c.Store.DSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("store.dsn is required for %v", c.Store.Driver))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported store.driver %q", c.Store.Driver))
	}
	if c.JobExecutor.WorkerCount <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("jobExecutor.workerCount must be > 0"))
	}
	if c.JobExecutor.PollInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("jobExecutor.pollInterval must be > 0"))
	}
	if c.JobExecutor.LockDuration < time.Second {
		errs = multierr.Append(errs, fmt.Errorf("jobExecutor.lockDuration must be at least 1s"))
	}
	if c.JobExecutor.RetryMax < c.JobExecutor.RetryMin {
		errs = multierr.Append(errs, fmt.Errorf("jobExecutor.retryMax must not be below retryMin"))
	}
	if c.Command.JobRetries <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("command.jobRetries must be > 0"))
	}
	switch c.Events.Dispatcher {
	case "", DispatcherNone, DispatcherQueue:
	case DispatcherRedis:
		if c.Events.RedisAddr == "" {
			errs = multierr.Append(errs, fmt.Errorf("events.redisAddr is required for redis"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported events.dispatcher %q", c.Events.Dispatcher))
	}
	switch c.Tracing.Exporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.Tracing.Endpoint == "" {
			errs = multierr.Append(errs, fmt.Errorf("tracing.endpoint is required for otlp"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported tracing.exporter %q", c.Tracing.Exporter))
	}
	return errs
}
