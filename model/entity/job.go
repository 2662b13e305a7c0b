package entity

import (
	"strings"
	"time"
)

// Job types.
const (
	JobTypeTimerStart        = "timer-start-event"
	JobTypeAsyncContinuation = "async-continuation"
	JobTypeTriggerTimer      = "trigger-timer"
	timerStartActivityPrefix = "timerstart:"
)

// Job is a durable unit of deferred work.
type Job struct {
	ID                  string    `json:"id"`
	Type                string    `json:"type"`
	ExecutionID         string    `json:"executionId,omitempty"`
	ProcessInstanceID   string    `json:"processInstanceId,omitempty"`
	ProcessDefinitionID string    `json:"processDefinitionId,omitempty"`
	Configuration       string    `json:"configuration,omitempty"`
	DueDate             time.Time `json:"dueDate"`
	Retries             int       `json:"retries"`
	LockOwner           string    `json:"lockOwner,omitempty"`
	LockExpiration      time.Time `json:"lockExpiration,omitempty"`
	ExceptionMessage    string    `json:"exceptionMessage,omitempty"`
	Dead                bool      `json:"dead"`
	CreateTime          time.Time `json:"createTime"`
	Rev                 int       `json:"rev"`
}

// IsDue returns true when the job may be acquired at now.
func (j *Job) IsDue(now time.Time) bool {
	if j.Dead || j.DueDate.After(now) {
		return false
	}
	return j.LockOwner == "" || j.LockExpiration.Before(now)
}

// IsLockedBy returns true when owner holds an unexpired lease at now.
func (j *Job) IsLockedBy(owner string, now time.Time) bool {
	return j.LockOwner == owner && !j.LockExpiration.Before(now)
}

// Clone returns a copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	ret := *j
	return &ret
}

// Field returns the value of a queryable field.
func (j *Job) Field(name string) (interface{}, bool) {
	switch name {
	case "ID":
		return j.ID, true
	case "Type":
		return j.Type, true
	case "ExecutionID":
		return j.ExecutionID, true
	case "ProcessInstanceID":
		return j.ProcessInstanceID, true
	case "ProcessDefinitionID":
		return j.ProcessDefinitionID, true
	case "Configuration":
		return j.Configuration, true
	case "Dead":
		return j.Dead, true
	}
	return nil, false
}

// TimerStartConfiguration encodes the start activity of a timer-start job.
func TimerStartConfiguration(activityID string) string {
	return timerStartActivityPrefix + activityID
}

// TimerStartActivity decodes the start activity of a timer-start job; an
// empty result means the default start event.
func TimerStartActivity(configuration string) string {
	return strings.TrimPrefix(configuration, timerStartActivityPrefix)
}
