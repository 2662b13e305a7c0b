package entity

// Execution is a token walking the process graph. The execution whose
// ProcessInstanceID equals its ID is the process instance root.
type Execution struct {
	ID                   string                 `json:"id"`
	ProcessInstanceID    string                 `json:"processInstanceId"`
	ProcessDefinitionID  string                 `json:"processDefinitionId"`
	ParentID             string                 `json:"parentId,omitempty"`
	CurrentFlowElementID string                 `json:"currentFlowElementId,omitempty"`
	IsActive             bool                   `json:"isActive"`
	IsScope              bool                   `json:"isScope"`
	IsConcurrent         bool                   `json:"isConcurrent"`
	IsEventScope         bool                   `json:"isEventScope"`
	IsEnded              bool                   `json:"isEnded"`
	Variables            map[string]interface{} `json:"variables,omitempty"`
	Rev                  int                    `json:"rev"`
}

// IsProcessInstance returns true for the root execution.
func (e *Execution) IsProcessInstance() bool {
	return e.ID == e.ProcessInstanceID
}

// Clone returns a copy with its own variables map.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	ret := *e
	if e.Variables != nil {
		ret.Variables = make(map[string]interface{}, len(e.Variables))
		for k, v := range e.Variables {
			ret.Variables[k] = v
		}
	}
	return &ret
}

// Field returns the value of a queryable field.
func (e *Execution) Field(name string) (interface{}, bool) {
	switch name {
	case "ID":
		return e.ID, true
	case "ProcessInstanceID":
		return e.ProcessInstanceID, true
	case "ProcessDefinitionID":
		return e.ProcessDefinitionID, true
	case "ParentID":
		return e.ParentID, true
	case "CurrentFlowElementID":
		return e.CurrentFlowElementID, true
	case "IsEnded":
		return e.IsEnded, true
	}
	return nil, false
}
