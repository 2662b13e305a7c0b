package criteria

import (
	"github.com/viant/fluxbpm/service/dao"
)

// Fielder exposes queryable entity fields.
type Fielder interface {
	Field(name string) (interface{}, bool)
}

// Match returns true when every parameter matches the entity. Unknown
// field names never match.
func Match(entity Fielder, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		actual, ok := entity.Field(parameter.Name)
		if !ok {
			return false
		}
		switch expected := parameter.Value.(type) {
		case []string:
			value, _ := actual.(string)
			if !contains(expected, value) {
				return false
			}
		default:
			if actual != expected {
				return false
			}
		}
	}
	return true
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
