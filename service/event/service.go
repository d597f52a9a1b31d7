// Package event distributes typed run lifecycle events over the messaging
// queues. Each payload type gets its own queue; an untyped firehose queue
// receives a copy of everything.
package event

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/relforge/tagship/service/messaging"
	"github.com/relforge/tagship/service/messaging/fs"
	"github.com/relforge/tagship/service/messaging/memory"
	"github.com/viant/afs"
)

// Service manages typed publishers and listeners.
type Service struct {
	publisher         *Publisher[any]
	listener          *Listener[any]
	typedPublishers   map[reflect.Type]any
	typedListeners    map[reflect.Type]any
	mux               *sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
}

// Option customises the event service.
type Option func(s *Service)

// WithFSQueueConfig sets the per-queue file system configuration factory.
func WithFSQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = newConfig
	}
}

// WithMemoryQueueConfig sets the per-queue memory configuration factory.
func WithMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newConfig
	}
}

// New creates an event service backed by the given queue vendor.
func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:     queueVendor,
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]any),
		mux:             &sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires a queue config factory")
		}
	case messaging.VendorMemory:
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}

	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	return ret, nil
}

// SetListener installs the firehose listener, replacing any previous one.
func (s *Service) SetListener(handler func(*Event[any])) {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[any](s.publisher, handler)
	s.listener.Start()
}

// QueueOf creates a vendor queue for the given payload type.
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType != nil && rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf installs a typed listener, replacing any previous one for
// the same payload type.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := keyOf[T]()
	s.mux.RLock()
	previous, ok := s.typedListeners[key]
	s.mux.RUnlock()
	if ok {
		previous.(*Listener[T]).Stop()
	}
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	listener := NewListener[T](publisher, handler)
	s.mux.Lock()
	s.typedListeners[key] = listener
	listener.Start()
	s.mux.Unlock()
	return nil
}

// PublisherOf returns the publisher for the given payload type, creating its
// queue on first use.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	existing, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return existing.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.anyQueue = s.publisher.queue
	s.mux.Lock()
	s.typedPublishers[key] = publisher
	s.mux.Unlock()
	return publisher, nil
}
