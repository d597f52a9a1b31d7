package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/runtime/execution"
	executionmem "github.com/relforge/tagship/service/dao/execution/memory"
	runmem "github.com/relforge/tagship/service/dao/run/memory"
	"github.com/relforge/tagship/service/executor"
	"github.com/relforge/tagship/service/messaging/memory"
)

type nopExecutor struct{}

func (nopExecutor) Execute(ctx context.Context, anExecution *execution.StepExecution, aRun *execution.Run) error {
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	queue := memory.NewQueue[execution.StepExecution](memory.DefaultConfig())
	service, err := New(
		WithMessageQueue(queue),
		WithRunDAO(runmem.New()),
		WithExecutionDAO(executionmem.New()),
		WithExecutor(executor.Service(nopExecutor{})),
		WithWorkers(1),
	)
	assert.NoError(t, err)
	return service
}

func testRelease() *model.Release {
	release := model.NewRelease("publish")
	release.On = &model.Trigger{Push: &model.PushTrigger{Tags: []string{"v*"}}}
	release.NewStep("checkout").WithAction("vcs", "checkout", nil)
	return release
}

func TestService_StartRun(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	refEvent := model.ParseRef("refs/tags/v1.2.3")
	refEvent.SHA = "abc123"
	aRun, err := service.StartRun(ctx, testRelease(), &refEvent, nil)
	assert.NoError(t, err)
	if !assert.NotNil(t, aRun) {
		return
	}
	assert.Equal(t, execution.StateRunning, aRun.GetState())
	assert.Equal(t, 1, len(aRun.Stack))

	tag, _ := aRun.Session.GetString("tag")
	assert.Equal(t, "v1.2.3", tag)
	sha, _ := aRun.Session.GetString("sha")
	assert.Equal(t, "abc123", sha)

	err = service.PauseRun(ctx, aRun.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.StatePaused, aRun.GetState())

	err = service.ResumeRun(ctx, aRun.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.StateRunning, aRun.GetState())

	retrieved, err := service.GetRun(ctx, aRun.ID)
	assert.NoError(t, err)
	assert.Equal(t, aRun.ID, retrieved.ID)

	err = service.CancelRun(ctx, aRun.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.StateCancelled, aRun.GetState())
	assert.Error(t, service.CancelRun(ctx, aRun.ID))
}

func TestService_StartRun_NoPipeline(t *testing.T) {
	service := newTestService(t)
	_, err := service.StartRun(context.Background(), model.NewRelease("empty"), nil, nil)
	assert.Error(t, err)
}

func TestService_ShouldRetry(t *testing.T) {
	service := newTestService(t)

	// Single attempt without an explicit policy.
	retry, _ := service.shouldRetry(nil, 0)
	assert.False(t, retry)

	// Explicit policy opts in.
	retry, delay := service.shouldRetry(&graph.Retry{Type: "fixed", MaxRetries: 2, Delay: "50ms"}, 0)
	assert.True(t, retry)
	assert.Equal(t, 50*time.Millisecond, delay)

	retry, _ = service.shouldRetry(&graph.Retry{Type: "fixed", MaxRetries: 2}, 2)
	assert.False(t, retry)

	retry, _ = service.shouldRetry(&graph.Retry{Type: "none", MaxRetries: 5}, 0)
	assert.False(t, retry)

	retry, delay = service.shouldRetry(&graph.Retry{Type: "exponential", MaxRetries: 3, Delay: "100ms"}, 1)
	assert.True(t, retry)
	assert.Equal(t, 200*time.Millisecond, delay)
}
