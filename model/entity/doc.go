// Package entity defines the persisted runtime state of the engine:
// executions, event subscriptions and jobs. Every entity carries a revision
// number used for optimistic locking by the stores.
package entity
