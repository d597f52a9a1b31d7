package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	RunID string
	Step  string
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx := context.Background()

	err := queue.Publish(ctx, &payload{RunID: "run-1", Step: "checkout"})
	assert.Nil(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.Nil(t, err)
	assert.Equal(t, "checkout", message.T().Step)
	assert.Nil(t, message.Ack())
	assert.NotNil(t, message.Ack(), "double settle should fail")
}

func TestQueue_NackRedelivers(t *testing.T) {
	config := Config{MaxRedeliveries: 1, RedeliveryDelay: time.Millisecond, DeadLetter: true, Buffer: 4}
	queue := NewQueue[payload](config)
	ctx := context.Background()

	assert.Nil(t, queue.Publish(ctx, &payload{RunID: "run-1", Step: "publish"}))

	message, err := queue.Consume(ctx)
	assert.Nil(t, err)
	assert.Nil(t, message.Nack(fmt.Errorf("registry unavailable")))

	redelivered, err := queue.Consume(ctx)
	assert.Nil(t, err)
	assert.Equal(t, "run-1", redelivered.T().RunID)

	// Second failure exceeds the limit and dead letters the message.
	assert.Nil(t, redelivered.Nack(fmt.Errorf("registry unavailable")))
	assert.Eventually(t, func() bool { return queue.DeadLetterSize() == 1 }, time.Second, 5*time.Millisecond)
}

func TestQueue_ConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
}
