package jobexecutor

import (
	"time"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/internal/metrics"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/job"
	"github.com/viant/fluxbpm/service/messaging"
)

// Config represents job executor configuration
type Config struct {
	// WorkerCount bounds the jobs executed concurrently.
	WorkerCount int `json:"workerCount" yaml:"workerCount"`
	// PollInterval is how often Start looks for due jobs.
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
	// MaxJobsPerAcquisition bounds one acquisition round.
	MaxJobsPerAcquisition int `json:"maxJobsPerAcquisition" yaml:"maxJobsPerAcquisition"`
	// LockDuration is the lease granted to an acquired job.
	LockDuration time.Duration `json:"lockDuration" yaml:"lockDuration"`
	// LockOwner identifies this executor in job leases.
	LockOwner string `json:"lockOwner" yaml:"lockOwner"`
	// ConflictAttempts bounds the attempts of a job command failing with an
	// optimistic lock conflict.
	ConflictAttempts int           `json:"conflictAttempts" yaml:"conflictAttempts"`
	ConflictDelay    time.Duration `json:"conflictDelay" yaml:"conflictDelay"`
	// RateLimit caps job executions per second; 0 disables it.
	RateLimit float64 `json:"rateLimit" yaml:"rateLimit"`
	// RetryMin and RetryMax bound the backoff of failed jobs.
	RetryMin    time.Duration `json:"retryMin" yaml:"retryMin"`
	RetryMax    time.Duration `json:"retryMax" yaml:"retryMax"`
	RetryJitter float64       `json:"retryJitter" yaml:"retryJitter"`
}

// DefaultConfig returns the default job executor configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount:           4,
		PollInterval:          250 * time.Millisecond,
		MaxJobsPerAcquisition: 32,
		LockDuration:          5 * time.Minute,
		ConflictAttempts:      5,
		ConflictDelay:         10 * time.Millisecond,
		RetryMin:              time.Second,
		RetryMax:              10 * time.Minute,
		RetryJitter:           0.1,
	}
}

// Backoff returns the retry policy of failed jobs.
func (c Config) Backoff() job.Backoff {
	return job.ExponentialBackoff{Min: c.RetryMin, Max: c.RetryMax, Jitter: c.RetryJitter}
}

// Option configures the Service.
type Option func(*Service)

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithQueue sets the queue handing acquired jobs to workers.
func WithQueue(queue messaging.Queue[entity.Job]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithBackoff overrides the configured retry policy.
func WithBackoff(backoff job.Backoff) Option {
	return func(s *Service) {
		s.backoff = backoff
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Service) {
		s.metrics = collector
	}
}
