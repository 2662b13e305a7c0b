package idgen

import "github.com/google/uuid"

// NewFunc returns a new time-ordered identifier. Tests may replace it.
var NewFunc = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// New returns a new globally unique identifier as string.
func New() string { return NewFunc() }
