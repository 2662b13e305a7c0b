// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Identifiers are time ordered (UUIDv7): sorting by id follows creation
// order, which the stores rely on for deterministic listings.
package idgen
