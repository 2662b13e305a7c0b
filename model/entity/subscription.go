package entity

import "time"

// Subscription event types.
const (
	EventTypeTimer        = "timer"
	EventTypeMessage      = "message"
	EventTypeSignal       = "signal"
	EventTypeCompensation = "compensation"
)

// EventSubscription records that an execution waits for an event.
// Configuration holds the message or signal name, the timer formula, or the
// id of the compensating execution.
type EventSubscription struct {
	ID                string    `json:"id"`
	ExecutionID       string    `json:"executionId"`
	ProcessInstanceID string    `json:"processInstanceId"`
	EventType         string    `json:"eventType"`
	ActivityID        string    `json:"activityId"`
	Configuration     string    `json:"configuration,omitempty"`
	CreateTime        time.Time `json:"createTime"`
	Rev               int       `json:"rev"`
}

// Clone returns a copy.
func (s *EventSubscription) Clone() *EventSubscription {
	if s == nil {
		return nil
	}
	ret := *s
	return &ret
}

// Field returns the value of a queryable field.
func (s *EventSubscription) Field(name string) (interface{}, bool) {
	switch name {
	case "ID":
		return s.ID, true
	case "ExecutionID":
		return s.ExecutionID, true
	case "ProcessInstanceID":
		return s.ProcessInstanceID, true
	case "EventType":
		return s.EventType, true
	case "ActivityID":
		return s.ActivityID, true
	case "Configuration":
		return s.Configuration, true
	}
	return nil, false
}
