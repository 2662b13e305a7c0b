package dao

import "errors"

// Common, reusable DAO errors. Callers detect them via errors.Is.
var (
	// ErrNotFound is returned when the requested entity does not exist in the
	// underlying storage.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")

	// ErrOptimisticLock is returned by Flush when an update or delete matched
	// no row at the expected revision. The whole batch is discarded.
	ErrOptimisticLock = errors.New("dao: optimistic lock conflict")

	// ErrDuplicateID is returned when an insert reuses an existing id.
	ErrDuplicateID = errors.New("dao: duplicate id")
)
