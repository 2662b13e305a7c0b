// Package messaging defines the in-process queue abstraction used to hand
// acquired jobs and lifecycle events to their consumers.
package messaging

import (
	"context"
)

// Queue is a typed message queue.
type Queue[T any] interface {
	// Publish enqueues a copy of t.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a consumed queue entry.
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack reports a processing failure; the queue decides whether to redeliver.
	Nack(err error) error
}
