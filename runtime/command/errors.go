package command

import (
	"errors"
	"fmt"

	"github.com/viant/fluxbpm/service/dao"
)

// DomainError signals a process model or state violation: an unresolvable
// flow element, an ambiguous gateway, a missing compensation target. The
// command is rolled back and never retried.
type DomainError struct {
	Err error
}

func (e *DomainError) Error() string { return "domain error: " + e.Err.Error() }

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError formats a DomainError; %w verbs keep wrapped causes visible to errors.Is.
func NewDomainError(format string, args ...interface{}) error {
	return &DomainError{Err: fmt.Errorf(format, args...)}
}

// ConfigurationError signals a malformed job or subscription payload, or a
// missing handler registration.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.Err }

func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}

// HandlerError wraps a failure raised by a job handler.
type HandlerError struct {
	JobID   string
	JobType string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("job %v (%v) failed: %v", e.JobID, e.JobType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsDomain returns true for errors that must not be retried.
func IsDomain(err error) bool {
	var domainErr *DomainError
	var configErr *ConfigurationError
	return errors.As(err, &domainErr) || errors.As(err, &configErr)
}

// IsRetryable returns true for optimistic lock conflicts.
func IsRetryable(err error) bool {
	return errors.Is(err, dao.ErrOptimisticLock)
}
