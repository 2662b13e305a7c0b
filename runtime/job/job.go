package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/viant/fluxbpm/internal/clock"
	"github.com/viant/fluxbpm/model/entity"
	"github.com/viant/fluxbpm/runtime/agenda"
	"github.com/viant/fluxbpm/runtime/command"
	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/event"
)

// ErrStale is returned when a job was deleted or its lease passed to
// another owner before it ran.
var ErrStale = errors.New("job no longer held")

// Schedule inserts a job due at dueDate, or right away when dueDate is
// zero. execution may be nil for definition level jobs.
func Schedule(ctx *command.Context, jobType string, execution *entity.Execution, processDefinitionID, configuration string, dueDate time.Time) *entity.Job {
	if dueDate.IsZero() {
		dueDate = clock.Now()
	}
	return agenda.ScheduleJob(ctx, jobType, execution, processDefinitionID, configuration, dueDate)
}

// Execute runs the handler of a leased job and deletes it. An empty owner
// skips the lease check.
func Execute(ctx *command.Context, jobID, owner string) error {
	job, err := held(ctx, jobID, owner)
	if err != nil {
		return err
	}
	handler, ok := ctx.Handlers.Job(job.Type)
	if !ok {
		return command.NewConfigurationError("no handler registered for %q jobs", job.Type)
	}
	if err = handler.Execute(ctx, job); err != nil {
		if command.IsDomain(err) || command.IsRetryable(err) {
			return err
		}
		return &command.HandlerError{JobID: job.ID, JobType: job.Type, Err: err}
	}
	ctx.Session.DeleteJob(job)
	ctx.EmitJob(event.JobExecuted, job, nil)
	return nil
}

// Fail records a failed attempt: it releases the lease, decrements the
// retries and either reschedules the job with backoff or marks it dead.
// Terminal failures go dead right away.
func Fail(ctx *command.Context, jobID, owner string, cause error, backoff Backoff, terminal bool) (*entity.Job, error) {
	job, err := held(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	job.Retries--
	job.ExceptionMessage = cause.Error()
	job.LockOwner = ""
	job.LockExpiration = now
	if terminal || job.Retries <= 0 {
		if job.Retries < 0 {
			job.Retries = 0
		}
		job.Dead = true
		ctx.EmitJob(event.JobDead, job, map[string]interface{}{"exception": job.ExceptionMessage})
		return job, nil
	}
	job.DueDate = now
	if backoff != nil {
		job.DueDate = backoff.NextRetry(now, ctx.Settings.JobRetries-job.Retries-1)
	}
	ctx.EmitJob(event.JobFailed, job, map[string]interface{}{"exception": job.ExceptionMessage, "retries": job.Retries})
	return job, nil
}

// RetryDead returns a dead job to the due queue with a fresh retry budget.
func RetryDead(ctx *command.Context, jobID string, retries int) error {
	job, err := ctx.Session.Job(jobID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return command.NewDomainError("%w", err)
		}
		return err
	}
	if !job.Dead {
		return command.NewDomainError("job %v is not dead", jobID)
	}
	if retries <= 0 {
		retries = ctx.Settings.JobRetries
	}
	job.Dead = false
	job.Retries = retries
	job.DueDate = clock.Now()
	job.LockOwner = ""
	return nil
}

func held(ctx *command.Context, jobID, owner string) (*entity.Job, error) {
	job, err := ctx.Session.Job(jobID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStale, err)
		}
		return nil, err
	}
	if owner != "" && !job.IsLockedBy(owner, clock.Now()) {
		return nil, fmt.Errorf("%w: job %v leased by %q", ErrStale, jobID, job.LockOwner)
	}
	return job, nil
}
