package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/viant/fluxbpm/internal/metrics"
	"github.com/viant/fluxbpm/tracing"
)

// Logging logs every command outcome.
func Logging(logger *zap.Logger) Interceptor {
	logger = logger.With(zap.String("component", "command"))
	return func(ctx context.Context, cmd Command, next Invoker) error {
		started := time.Now()
		err := next(ctx, cmd)
		fields := []zap.Field{zap.String("command", cmd.Name()), zap.Duration("elapsed", time.Since(started))}
		switch {
		case err == nil:
			logger.Debug("command executed", fields...)
		case IsRetryable(err):
			logger.Debug("command conflicted", append(fields, zap.Error(err))...)
		default:
			logger.Warn("command failed", append(fields, zap.Error(err))...)
		}
		return err
	}
}

// Tracing runs every command in a span.
func Tracing() Interceptor {
	return func(ctx context.Context, cmd Command, next Invoker) (err error) {
		ctx, span := tracing.StartSpan(ctx, "command "+cmd.Name(), "INTERNAL")
		defer func() { tracing.EndSpan(span, err) }()
		return next(ctx, cmd)
	}
}

// Metrics records command counts, durations and lock conflicts.
func Metrics(collector *metrics.Collector) Interceptor {
	return func(ctx context.Context, cmd Command, next Invoker) error {
		started := time.Now()
		err := next(ctx, cmd)
		status := "ok"
		switch {
		case err == nil:
		case IsRetryable(err):
			status = "conflict"
			collector.RecordConflict()
		case IsDomain(err):
			status = "domain_error"
		default:
			status = "error"
		}
		collector.RecordCommand(cmd.Name(), status, time.Since(started))
		return err
	}
}

// Retry re-runs a command that failed with an optimistic lock conflict, up
// to maxAttempts in total, waiting attempt*delay between attempts. Every
// attempt starts from a fresh unit of work.
func Retry(maxAttempts int, delay time.Duration) Interceptor {
	return func(ctx context.Context, cmd Command, next Invoker) error {
		var err error
		for attempt := 1; ; attempt++ {
			if err = next(ctx, cmd); err == nil || !IsRetryable(err) || attempt >= maxAttempts {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * delay):
			}
		}
	}
}
