package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/viant/fluxbpm/model/entity"
)

type executionRecord struct {
	ID                   string `gorm:"primaryKey;size:64"`
	ProcessInstanceID    string `gorm:"size:64;index"`
	ProcessDefinitionID  string `gorm:"size:255"`
	ParentID             string `gorm:"size:64;index"`
	CurrentFlowElementID string `gorm:"size:255"`
	IsActive             bool
	IsScope              bool
	IsConcurrent         bool
	IsEventScope         bool
	IsEnded              bool
	Variables            string `gorm:"type:text"`
	Rev                  int
}

func (executionRecord) TableName() string { return "fbpm_executions" }

type subscriptionRecord struct {
	ID                string `gorm:"primaryKey;size:64"`
	ExecutionID       string `gorm:"size:64;index"`
	ProcessInstanceID string `gorm:"size:64;index"`
	EventType         string `gorm:"size:32;index:idx_fbpm_sub_event"`
	ActivityID        string `gorm:"size:255"`
	Configuration     string `gorm:"size:255;index:idx_fbpm_sub_event"`
	CreateTime        time.Time
	Rev               int
}

func (subscriptionRecord) TableName() string { return "fbpm_event_subscriptions" }

type jobRecord struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	Type                string    `gorm:"size:64"`
	ExecutionID         string    `gorm:"size:64;index"`
	ProcessInstanceID   string    `gorm:"size:64;index"`
	ProcessDefinitionID string    `gorm:"size:255"`
	Configuration       string    `gorm:"size:255"`
	DueDate             time.Time `gorm:"index"`
	Retries             int
	LockOwner           string `gorm:"size:255"`
	LockExpiration      time.Time
	ExceptionMessage    string `gorm:"type:text"`
	Dead                bool
	CreateTime          time.Time
	Rev                 int
}

func (jobRecord) TableName() string { return "fbpm_jobs" }

func newExecutionRecord(e *entity.Execution) (*executionRecord, error) {
	variables, err := encodeVariables(e.Variables)
	if err != nil {
		return nil, err
	}
	return &executionRecord{
		ID:                   e.ID,
		ProcessInstanceID:    e.ProcessInstanceID,
		ProcessDefinitionID:  e.ProcessDefinitionID,
		ParentID:             e.ParentID,
		CurrentFlowElementID: e.CurrentFlowElementID,
		IsActive:             e.IsActive,
		IsScope:              e.IsScope,
		IsConcurrent:         e.IsConcurrent,
		IsEventScope:         e.IsEventScope,
		IsEnded:              e.IsEnded,
		Variables:            variables,
		Rev:                  e.Rev,
	}, nil
}

func (r *executionRecord) entity() (*entity.Execution, error) {
	ret := &entity.Execution{
		ID:                   r.ID,
		ProcessInstanceID:    r.ProcessInstanceID,
		ProcessDefinitionID:  r.ProcessDefinitionID,
		ParentID:             r.ParentID,
		CurrentFlowElementID: r.CurrentFlowElementID,
		IsActive:             r.IsActive,
		IsScope:              r.IsScope,
		IsConcurrent:         r.IsConcurrent,
		IsEventScope:         r.IsEventScope,
		IsEnded:              r.IsEnded,
		Rev:                  r.Rev,
	}
	if r.Variables != "" {
		if err := json.Unmarshal([]byte(r.Variables), &ret.Variables); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (r *executionRecord) columns() map[string]interface{} {
	return map[string]interface{}{
		"current_flow_element_id": r.CurrentFlowElementID,
		"parent_id":               r.ParentID,
		"is_active":               r.IsActive,
		"is_scope":                r.IsScope,
		"is_concurrent":           r.IsConcurrent,
		"is_event_scope":          r.IsEventScope,
		"is_ended":                r.IsEnded,
		"variables":               r.Variables,
		"rev":                     r.Rev + 1,
	}
}

func newSubscriptionRecord(s *entity.EventSubscription) *subscriptionRecord {
	return &subscriptionRecord{
		ID:                s.ID,
		ExecutionID:       s.ExecutionID,
		ProcessInstanceID: s.ProcessInstanceID,
		EventType:         s.EventType,
		ActivityID:        s.ActivityID,
		Configuration:     s.Configuration,
		CreateTime:        s.CreateTime.UTC(),
		Rev:               s.Rev,
	}
}

func (r *subscriptionRecord) entity() *entity.EventSubscription {
	return &entity.EventSubscription{
		ID:                r.ID,
		ExecutionID:       r.ExecutionID,
		ProcessInstanceID: r.ProcessInstanceID,
		EventType:         r.EventType,
		ActivityID:        r.ActivityID,
		Configuration:     r.Configuration,
		CreateTime:        r.CreateTime,
		Rev:               r.Rev,
	}
}

func (r *subscriptionRecord) columns() map[string]interface{} {
	return map[string]interface{}{
		"execution_id":  r.ExecutionID,
		"activity_id":   r.ActivityID,
		"configuration": r.Configuration,
		"rev":           r.Rev + 1,
	}
}

func newJobRecord(j *entity.Job) *jobRecord {
	return &jobRecord{
		ID:                  j.ID,
		Type:                j.Type,
		ExecutionID:         j.ExecutionID,
		ProcessInstanceID:   j.ProcessInstanceID,
		ProcessDefinitionID: j.ProcessDefinitionID,
		Configuration:       j.Configuration,
		DueDate:             j.DueDate.UTC(),
		Retries:             j.Retries,
		LockOwner:           j.LockOwner,
		LockExpiration:      j.LockExpiration.UTC(),
		ExceptionMessage:    j.ExceptionMessage,
		Dead:                j.Dead,
		CreateTime:          j.CreateTime.UTC(),
		Rev:                 j.Rev,
	}
}

func (r *jobRecord) entity() *entity.Job {
	return &entity.Job{
		ID:                  r.ID,
		Type:                r.Type,
		ExecutionID:         r.ExecutionID,
		ProcessInstanceID:   r.ProcessInstanceID,
		ProcessDefinitionID: r.ProcessDefinitionID,
		Configuration:       r.Configuration,
		DueDate:             r.DueDate,
		Retries:             r.Retries,
		LockOwner:           r.LockOwner,
		LockExpiration:      r.LockExpiration,
		ExceptionMessage:    r.ExceptionMessage,
		Dead:                r.Dead,
		CreateTime:          r.CreateTime,
		Rev:                 r.Rev,
	}
}

func (r *jobRecord) columns() map[string]interface{} {
	return map[string]interface{}{
		"configuration":     r.Configuration,
		"due_date":          r.DueDate,
		"retries":           r.Retries,
		"lock_owner":        r.LockOwner,
		"lock_expiration":   r.LockExpiration,
		"exception_message": r.ExceptionMessage,
		"dead":              r.Dead,
		"rev":               r.Rev + 1,
	}
}

func encodeVariables(variables map[string]interface{}) (string, error) {
	if len(variables) == 0 {
		return "", nil
	}
	data, err := json.Marshal(variables)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
