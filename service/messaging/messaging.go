// Package messaging defines the queue abstraction used to hand run and step
// work between the allocator and the processor workers.
package messaging

import "context"

// Vendor names a queue implementation.
type Vendor string

const (
	// VendorMemory selects the in-memory channel backed queue.
	VendorMemory Vendor = "memory"
	// VendorFS selects the file system backed queue.
	VendorFS Vendor = "fs"
)

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with the given payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue. A nil message with
	// a nil error means the queue is currently empty.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a single consumed queue entry.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack reports failed processing; the queue may redeliver the message.
	Nack(err error) error
}
