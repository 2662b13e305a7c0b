package jobexecutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/viant/fluxbpm/internal/clock"
	"github.com/viant/fluxbpm/internal/idgen"
	"github.com/viant/fluxbpm/internal/metrics"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/runtime/job"
	"github.com/viant/fluxbpm/service/messaging"
	"github.com/viant/fluxbpm/service/messaging/memory"
	"github.com/viant/fluxbpm/tracing"
)

// Service leases due jobs and executes them through the command executor.
type Service struct {
	config   Config
	executor *command.Executor
	queue    messaging.Queue[entity.Job]
	backoff  job.Backoff
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *metrics.Collector

	mux     sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// New creates a job executor.
func New(executor *command.Executor, options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig(), executor: executor}
	for _, opt := range options {
		opt(s)
	}
	if s.executor == nil {
		return nil, fmt.Errorf("command executor is required")
	}
	if s.config.WorkerCount <= 0 {
		return nil, fmt.Errorf("invalid worker count: %d", s.config.WorkerCount)
	}
	if s.config.MaxJobsPerAcquisition <= 0 {
		s.config.MaxJobsPerAcquisition = DefaultConfig().MaxJobsPerAcquisition
	}
	if s.config.ConflictAttempts <= 0 {
		s.config.ConflictAttempts = 1
	}
	if s.config.LockOwner == "" {
		s.config.LockOwner = "executor-" + idgen.New()
	}
	if s.backoff == nil {
		s.backoff = s.config.Backoff()
	}
	if s.config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(s.config.RateLimit), s.config.WorkerCount)
	}
	if s.queue == nil {
		s.queue = memory.NewQueue[entity.Job](memory.Config{QueueBuffer: 2 * s.config.MaxJobsPerAcquisition})
	}
	if s.logger == nil {
		s.logger = executor.Logger()
	}
	if s.metrics == nil {
		s.metrics = executor.Metrics()
	}
	s.logger = s.logger.With(zap.String("component", "jobexecutor"), zap.String("owner", s.config.LockOwner))
	return s, nil
}

// Owner returns the lock owner used in job leases.
func (s *Service) Owner() string {
	return s.config.LockOwner
}

// Acquire leases up to MaxJobsPerAcquisition due jobs. Jobs another
// acquirer won are skipped.
func (s *Service) Acquire(ctx context.Context) ([]*entity.Job, error) {
	store := s.executor.Store()
	now := clock.Now()
	due, err := store.DueJobs(ctx, now, s.config.MaxJobsPerAcquisition)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	var acquired []*entity.Job
	var errs error
	expiration := now.Add(s.config.LockDuration)
	for _, candidate := range due {
		ok, err := store.AcquireJob(ctx, candidate, s.config.LockOwner, expiration)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		candidate.LockOwner = s.config.LockOwner
		candidate.LockExpiration = expiration
		candidate.Rev++
		acquired = append(acquired, candidate)
	}
	if s.metrics != nil {
		s.metrics.RecordAcquired(len(acquired))
	}
	if errs != nil {
		if len(acquired) == 0 {
			return nil, fmt.Errorf("failed to acquire jobs: %w", errs)
		}
		s.logger.Warn("some jobs could not be acquired", zap.Error(errs))
	}
	return acquired, nil
}

// Tick runs one acquisition round and executes the acquired jobs on at most
// WorkerCount goroutines. It returns the number of executed jobs; job
// failures are recorded on the jobs, not returned.
func (s *Service) Tick(ctx context.Context) (int, error) {
	jobs, err := s.Acquire(ctx)
	if err != nil || len(jobs) == 0 {
		return 0, err
	}
	var group errgroup.Group
	group.SetLimit(s.config.WorkerCount)
	for _, acquired := range jobs {
		acquired := acquired
		group.Go(func() error {
			_ = s.Execute(ctx, acquired)
			return nil
		})
	}
	return len(jobs), group.Wait()
}

// Execute runs one acquired job. A failure is recorded on the job and
// returned; a job that was deleted or re-leased in the meantime is skipped.
func (s *Service) Execute(ctx context.Context, acquired *entity.Job) (err error) {
	ctx, span := tracing.StartSpan(ctx, "job "+acquired.Type, "CONSUMER")
	span.WithAttributes(map[string]string{"job.id": acquired.ID, "job.type": acquired.Type})
	defer func() { tracing.EndSpan(span, err) }()
	if s.limiter != nil {
		if err = s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	started := time.Now()
	err = s.executor.Execute(ctx, command.New("executeJob", func(c *command.Context) error {
		return job.Execute(c, acquired.ID, s.config.LockOwner)
	}), command.Retry(s.config.ConflictAttempts, s.config.ConflictDelay))
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, job.ErrStale):
		status = "stale"
		s.logger.Debug("skipping stale job", zap.String("job", acquired.ID), zap.Error(err))
		err = nil
	default:
		status = "failed"
		err = asHandlerError(acquired, err)
		if failErr := s.fail(ctx, acquired, err); failErr != nil {
			s.logger.Error("failed to record job failure", zap.String("job", acquired.ID), zap.Error(failErr))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordJob(acquired.Type, status, time.Since(started))
	}
	return err
}

func (s *Service) fail(ctx context.Context, acquired *entity.Job, cause error) error {
	terminal := command.IsDomain(cause)
	var failed *entity.Job
	err := s.executor.Execute(ctx, command.New("failJob", func(c *command.Context) error {
		var err error
		failed, err = job.Fail(c, acquired.ID, s.config.LockOwner, cause, s.backoff, terminal)
		return err
	}), command.Retry(s.config.ConflictAttempts, s.config.ConflictDelay))
	if errors.Is(err, job.ErrStale) {
		return nil
	}
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("job", acquired.ID),
		zap.String("type", acquired.Type),
		zap.Int("retries", failed.Retries),
		zap.Error(cause),
	}
	if failed.Dead {
		s.logger.Error("job is dead", fields...)
		return nil
	}
	s.logger.Warn("job failed", append(fields, zap.Time("dueDate", failed.DueDate))...)
	return nil
}

// asHandlerError attributes a plain failure to the job it occurred in.
func asHandlerError(acquired *entity.Job, err error) error {
	var handlerErr *command.HandlerError
	if command.IsDomain(err) || errors.As(err, &handlerErr) {
		return err
	}
	return &command.HandlerError{JobID: acquired.ID, JobType: acquired.Type, Err: err}
}

// Start launches the acquisition loop and the workers consuming acquired
// jobs from the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("job executor %v already started", s.config.LockOwner)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.WorkerCount; i++ {
		s.running.Add(1)
		go s.work(ctx, i)
	}
	s.running.Add(1)
	go s.poll(ctx)
	s.logger.Info("job executor started", zap.Int("workers", s.config.WorkerCount))
	return nil
}

func (s *Service) poll(ctx context.Context) {
	defer s.running.Done()
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		jobs, err := s.Acquire(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("job acquisition failed", zap.Error(err))
			}
			continue
		}
		for _, acquired := range jobs {
			if err = s.queue.Publish(ctx, acquired); err != nil {
				return
			}
		}
	}
}

func (s *Service) work(ctx context.Context, id int) {
	defer s.running.Done()
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("job queue consume failed", zap.Int("worker", id), zap.Error(err))
			time.Sleep(s.config.PollInterval)
			continue
		}
		_ = s.Execute(ctx, msg.T())
		_ = msg.Ack()
	}
}

// Shutdown stops acquisition and waits for running jobs to finish or for
// ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mux.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mux.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("job executor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
