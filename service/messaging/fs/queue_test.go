package fs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

type payload struct {
	RunID string
	Tag   string
}

func newTestQueue(t *testing.T, maxRetries int) *Queue[payload] {
	t.Helper()
	config := Config{BaseURL: t.TempDir(), MaxRetries: maxRetries, RetryDelay: time.Millisecond}
	queue, err := NewQueue[payload](afs.New(), config)
	assert.Nil(t, err)
	return queue
}

func TestQueue_PublishConsumeAck(t *testing.T) {
	queue := newTestQueue(t, 3)
	ctx := context.Background()

	assert.Nil(t, queue.Publish(ctx, &payload{RunID: "run-1", Tag: "v1.0.0"}))

	message, err := queue.Consume(ctx)
	assert.Nil(t, err)
	if !assert.NotNil(t, message) {
		return
	}
	assert.Equal(t, "v1.0.0", message.T().Tag)
	assert.Nil(t, message.Ack())

	// Queue is drained after the ack.
	next, err := queue.Consume(ctx)
	assert.Nil(t, err)
	assert.Nil(t, next)
}

func TestQueue_NackRetriesThenDeadLetters(t *testing.T) {
	queue := newTestQueue(t, 1)
	ctx := context.Background()

	assert.Nil(t, queue.Publish(ctx, &payload{RunID: "run-1", Tag: "v1.0.0"}))

	message, err := queue.Consume(ctx)
	assert.Nil(t, err)
	assert.Nil(t, message.Nack(fmt.Errorf("token exchange failed")))

	// First redelivery comes from the failed directory.
	message, err = queue.Consume(ctx)
	assert.Nil(t, err)
	if !assert.NotNil(t, message) {
		return
	}
	assert.Nil(t, message.Nack(fmt.Errorf("token exchange failed")))

	// Retry limit exceeded; nothing left to consume.
	message, err = queue.Consume(ctx)
	assert.Nil(t, err)
	assert.Nil(t, message)
}

func TestQueue_EmptyBaseURL(t *testing.T) {
	_, err := NewQueue[payload](afs.New(), Config{})
	assert.NotNil(t, err)
}
