// Package memory implements a channel backed in-process queue.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relforge/tagship/service/messaging"
)

// Config controls redelivery behaviour of the memory queue.
type Config struct {
	MaxRedeliveries int
	RedeliveryDelay time.Duration
	DeadLetter      bool
	Buffer          int
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		MaxRedeliveries: 3,
		RedeliveryDelay: 100 * time.Millisecond,
		DeadLetter:      true,
		Buffer:          128,
	}
}

// Queue is an in-memory messaging.Queue.
type Queue[T any] struct {
	entries chan *Message[T]
	dead    []*Message[T]
	config  Config
	deadMu  sync.Mutex
}

// Message is a single in-memory queue entry. The payload is held by
// reference so consumers observe the same instance the producer published.
type Message[T any] struct {
	id         string
	payload    *T
	queue      *Queue[T]
	deliveries int
	settled    bool
	mu         sync.Mutex
}

// NewQueue creates a queue with the given configuration.
func NewQueue[T any](config Config) *Queue[T] {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Queue[T]{
		entries: make(chan *Message[T], config.Buffer),
		config:  config,
	}
}

// Publish adds a payload to the queue.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	msg := &Message[T]{
		id:      uuid.New().String(),
		payload: t,
		queue:   q,
	}
	select {
	case q.entries <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until a message is available or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.entries:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of buffered messages.
func (q *Queue[T]) Size() int {
	return len(q.entries)
}

// DeadLetterSize returns the number of dead lettered messages.
func (q *Queue[T]) DeadLetterSize() int {
	q.deadMu.Lock()
	defer q.deadMu.Unlock()
	return len(q.dead)
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return m.payload
}

// Ack marks the message as processed.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.id)
	}
	m.settled = true
	return nil
}

// Nack reports failed processing; the message is redelivered after the
// configured delay until the redelivery limit is reached, then dead
// lettered when dead lettering is enabled.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.id)
	}
	m.settled = true
	m.deliveries++

	if m.deliveries <= m.queue.config.MaxRedeliveries {
		go func() {
			time.Sleep(m.queue.config.RedeliveryDelay)
			m.queue.entries <- &Message[T]{
				id:         m.id,
				payload:    m.payload,
				queue:      m.queue,
				deliveries: m.deliveries,
			}
		}()
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.deadMu.Lock()
		m.queue.dead = append(m.queue.dead, m)
		m.queue.deadMu.Unlock()
	}
	return nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
