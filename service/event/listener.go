package event

import (
	"context"
	"time"
)

// Listener consumes events from a publisher and invokes the handler for each.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewListener creates a listener bound to the publisher.
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop terminates the consume loop.
func (l *Listener[T]) Stop() {
	l.cancel()
}

// Start launches the consume loop in a goroutine.
func (l *Listener[T]) Start() {
	go func() {
		for {
			select {
			case <-l.ctx.Done():
				return
			default:
				event, err := l.publisher.Consume(l.ctx)
				if err != nil || event == nil {
					// Backed by a polling queue there may be nothing to
					// consume yet.
					time.Sleep(10 * time.Millisecond)
					continue
				}
				l.handler(event)
			}
		}
	}()
}
