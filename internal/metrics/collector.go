package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the engine metrics registered on one registry.
type Collector struct {
	registry *prometheus.Registry

	commandsTotal      *prometheus.CounterVec
	commandDuration    *prometheus.HistogramVec
	lockConflicts      prometheus.Counter
	operationsExecuted prometheus.Counter
	jobsAcquired       prometheus.Counter
	jobsTotal          *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
}

// NewCollector registers the engine metrics under namespace; a nil
// registry gets a private one.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)
	return &Collector{
		registry: registry,
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of executed commands",
		}, []string{"command", "status"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		lockConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_lock_conflicts_total",
			Help:      "Total number of optimistic lock conflicts",
		}),
		operationsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agenda_operations_total",
			Help:      "Total number of executed agenda operations",
		}),
		jobsAcquired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_acquired_total",
			Help:      "Total number of acquired jobs",
		}),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of executed jobs",
		}, []string{"type", "status"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordCommand(name, status string, duration time.Duration) {
	c.commandsTotal.WithLabelValues(name, status).Inc()
	c.commandDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func (c *Collector) RecordConflict() {
	c.lockConflicts.Inc()
}

func (c *Collector) RecordOperations(n int) {
	c.operationsExecuted.Add(float64(n))
}

func (c *Collector) RecordAcquired(n int) {
	c.jobsAcquired.Add(float64(n))
}

func (c *Collector) RecordJob(jobType, status string, duration time.Duration) {
	c.jobsTotal.WithLabelValues(jobType, status).Inc()
	c.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}
