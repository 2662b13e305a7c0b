package event

import (
	"context"
	"time"

	"github.com/viant/fluxbpm/internal/clock"
)

// Lifecycle event types.
const (
	ProcessStarted     = "processStarted"
	ProcessCompleted   = "processCompleted"
	ProcessCancelled   = "processCancelled"
	ActivityStarted    = "activityStarted"
	ActivityCompleted  = "activityCompleted"
	ActivityCompensate = "activityCompensate"
	SubscriptionFired  = "subscriptionFired"
	// SubscriptionSkipped reports a matched catch subscription whose
	// execution an earlier match of the same trigger already moved on.
	SubscriptionSkipped = "subscriptionSkipped"
	JobExecuted         = "jobExecuted"
	JobFailed           = "jobFailed"
	JobDead             = "jobDead"
	TimerStartSkipped   = "timerStartSkipped"
)

type Context struct {
	ProcessInstanceID   string `json:"processInstanceId,omitempty"`
	ProcessDefinitionID string `json:"processDefinitionId,omitempty"`
	ExecutionID         string `json:"executionId,omitempty"`
	ActivityID          string `json:"activityId,omitempty"`
	JobID               string `json:"jobId,omitempty"`
	EventType           string `json:"eventType"`
}

type Event struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(context *Context, data map[string]interface{}) *Event {
	return &Event{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}

// Dispatcher delivers lifecycle events after a command committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *Event) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event *Event) error

func (f DispatcherFunc) Dispatch(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
