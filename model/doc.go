// Package model contains the in-memory representation of process
// definitions and the persisted runtime entities used by the engine.
//
// Definitions live in the `graph` sub-package; executions, event
// subscriptions and jobs live in `entity`.
package model
