// Package fs implements a file system backed queue on top of afs. Messages
// move between per-state directories so a crashed consumer leaves an audit
// trail and unfinished work can be retried.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relforge/tagship/service/messaging"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
)

// State is the lifecycle state of a persisted message.
type State string

const (
	StatePending  State = "pending"
	StateClaimed  State = "claimed"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateDead     State = "dead"
)

// Config holds the file system queue configuration.
type Config struct {
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns a default queue configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "/tmp/tagship/queue",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Message is a persisted queue entry.
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Retries   int       `json:"retries"`

	queue   *Queue[T]
	settled bool
	mu      sync.Mutex
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to the done directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.ID)
	}
	m.settled = true
	m.State = StateDone
	m.UpdatedAt = time.Now()
	return m.queue.settle(context.Background(), m, m.queue.doneDir)
}

// Nack records the failure and schedules the message for retry, or moves it
// to the dead directory when the retry limit is exceeded.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return fmt.Errorf("message %s already settled", m.ID)
	}
	m.settled = true
	m.State = StateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = time.Now()
	dest := m.queue.failedDir
	if m.Retries > m.queue.config.MaxRetries {
		m.State = StateDead
		dest = m.queue.deadDir
	}
	return m.queue.settle(context.Background(), m, dest)
}

// Queue is a file system backed messaging.Queue.
type Queue[T any] struct {
	fs         afs.Service
	config     Config
	pendingDir string
	claimedDir string
	doneDir    string
	failedDir  string
	deadDir    string
	mu         sync.Mutex
}

// NewQueue creates the queue and its state directories.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("queue base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:         fs,
		config:     config,
		pendingDir: path.Join(config.BaseURL, "pending"),
		claimedDir: path.Join(config.BaseURL, "claimed"),
		doneDir:    path.Join(config.BaseURL, "done"),
		failedDir:  path.Join(config.BaseURL, "failed"),
		deadDir:    path.Join(config.BaseURL, "dead"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.claimedDir, q.doneDir, q.failedDir, q.deadDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish persists a payload into the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	message := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
		queue:     q,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.upload(ctx, path.Join(q.pendingDir, message.ID+".json"), data)
}

// Consume claims the oldest pending message, retrying failed ones first.
// A nil message means the queue is currently empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	if message, err := q.claimFrom(ctx, q.failedDir, true); message != nil || err != nil {
		return orNil(message), err
	}
	message, err := q.claimFrom(ctx, q.pendingDir, false)
	return orNil(message), err
}

// orNil keeps a typed nil from leaking into the interface return value.
func orNil[T any](m *Message[T]) messaging.Message[T] {
	if m == nil {
		return nil
	}
	return m
}

// claimFrom moves the oldest message from dir into the claimed directory.
func (q *Queue[T]) claimFrom(ctx context.Context, dir string, retrying bool) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var candidates []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			candidates = append(candidates, object)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	object := candidates[0]

	message, err := q.download(ctx, object.URL())
	if err != nil {
		dest := path.Join(q.deadDir, "corrupt-"+object.Name())
		_ = q.fs.Move(ctx, object.URL(), dest)
		return nil, err
	}
	if retrying && message.Retries > q.config.MaxRetries {
		if err := q.fs.Move(ctx, object.URL(), path.Join(q.deadDir, object.Name())); err != nil {
			return nil, fmt.Errorf("failed to dead letter message: %w", err)
		}
		return nil, nil
	}

	message.State = StateClaimed
	message.UpdatedAt = time.Now()
	message.queue = q

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claimed message: %w", err)
	}
	if err := q.upload(ctx, path.Join(q.claimedDir, object.Name()), data); err != nil {
		return nil, err
	}
	if err := q.fs.Delete(ctx, object.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove message from %s: %w", dir, err)
	}
	return message, nil
}

// settle persists the message into dest and removes the claimed copy.
func (q *Queue[T]) settle(ctx context.Context, m *Message[T], dest string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := m.ID + ".json"
	if err := q.upload(ctx, path.Join(dest, name), data); err != nil {
		return err
	}
	claimed := path.Join(q.claimedDir, name)
	if exists, _ := q.fs.Exists(ctx, claimed); exists {
		if err := q.fs.Delete(ctx, claimed); err != nil {
			return fmt.Errorf("failed to remove claimed message: %w", err)
		}
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, dest string, data []byte) error {
	return q.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) download(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return message, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
