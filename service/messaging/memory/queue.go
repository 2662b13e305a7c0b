package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viant/fluxbpm/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	// MaxRetries bounds redeliveries of a nacked message.
	MaxRetries int
	RetryDelay time.Duration
	// DeadLetter keeps messages that ran out of redeliveries.
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 100,
	}
}

// Message is an in-memory queue entry.
type Message[T any] struct {
	id         string
	payload    T
	queue      *Queue[T]
	retryCount int
	mu         sync.Mutex
	processed  bool
	lastErr    error
}

// ID returns the message id.
func (m *Message[T]) ID() string {
	return m.id
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %v already processed", m.id)
	}
	m.processed = true
	return nil
}

// Nack redelivers the message after the retry delay, or moves it to the
// dead letter list once its redeliveries are exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %v already processed", m.id)
	}
	m.processed = true
	m.lastErr = err
	if m.retryCount < m.queue.config.MaxRetries {
		redelivered := &Message[T]{id: m.id, payload: m.payload, queue: m.queue, retryCount: m.retryCount + 1}
		time.AfterFunc(m.queue.config.RetryDelay, func() {
			m.queue.enqueue(redelivered)
		})
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.dlqMu.Lock()
		m.queue.dlq = append(m.queue.dlq, m)
		m.queue.dlqMu.Unlock()
	}
	return nil
}

// Queue is a buffered in-memory messaging.Queue.
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	dlq      []*Message[T]
	dlqMu    sync.Mutex
	closed   chan struct{}
	once     sync.Once
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
		closed:   make(chan struct{}),
	}
}

// Publish enqueues a copy of t; it blocks while the buffer is full.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{id: uuid.New().String(), payload: *t, queue: q}
	select {
	case <-q.closed:
		return fmt.Errorf("queue closed")
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue[T]) enqueue(msg *Message[T]) {
	select {
	case <-q.closed:
	case q.messages <- msg:
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-q.closed:
		return nil, fmt.Errorf("queue closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops redeliveries and unblocks consumers.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DLQSize returns the number of messages in the dead letter queue
func (q *Queue[T]) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
