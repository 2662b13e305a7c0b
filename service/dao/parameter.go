package dao

// Query parameter names.
const (
	ID                   = "ID"
	ProcessInstanceID    = "ProcessInstanceID"
	ProcessDefinitionID  = "ProcessDefinitionID"
	ParentID             = "ParentID"
	ExecutionID          = "ExecutionID"
	EventType            = "EventType"
	ActivityID           = "ActivityID"
	Configuration        = "Configuration"
	Type                 = "Type"
	Dead                 = "Dead"
	IsEnded              = "IsEnded"
	CurrentFlowElementID = "CurrentFlowElementID"
)

// Parameter is an equality filter; a []string value matches any of its items.
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// NewFlag creates a boolean parameter.
func NewFlag(name string, value bool) *Parameter {
	return &Parameter{Name: name, Value: value}
}
