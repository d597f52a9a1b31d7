package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/runtime/execution"
	executionmem "github.com/relforge/tagship/service/dao/execution/memory"
	runmem "github.com/relforge/tagship/service/dao/run/memory"
	"github.com/relforge/tagship/service/messaging/memory"
)

type harness struct {
	service *Service
	runDAO  *runmem.Service
	execDAO *executionmem.Service
	queue   *memory.Queue[execution.StepExecution]
}

func newHarness() *harness {
	runDAO := runmem.New()
	execDAO := executionmem.New()
	queue := memory.NewQueue[execution.StepExecution](memory.DefaultConfig())
	return &harness{
		service: New(runDAO, execDAO, queue, DefaultConfig()),
		runDAO:  runDAO,
		execDAO: execDAO,
		queue:   queue,
	}
}

func (h *harness) startRun(t *testing.T, release *model.Release, init map[string]interface{}) *execution.Run {
	t.Helper()
	aRun := execution.NewRun(release.Name+"/test", release.Name, release, init)
	aRun.Push(execution.NewStepExecution(aRun.ID, nil, release.Pipeline))
	aRun.SetState(execution.StateRunning)
	assert.NoError(t, h.runDAO.Save(context.Background(), aRun))
	return aRun
}

// pump alternates allocator ticks with a stand-in processor that completes
// queued executions using the supplied outputs, until the run leaves the
// running state or the iteration budget is exhausted.
func (h *harness) pump(t *testing.T, aRun *execution.Run, outputs map[string]interface{}) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if aRun.GetState() != execution.StateRunning {
			return
		}
		assert.NoError(t, h.service.scheduleNextSteps(ctx, aRun))

		if h.queue.Size() == 0 {
			continue
		}
		msg, err := h.queue.Consume(ctx)
		assert.NoError(t, err)
		anExecution := msg.T()
		anExecution.Start()
		if output, ok := outputs[anExecution.StepID]; ok {
			anExecution.Output = output
		}
		anExecution.Complete()
		assert.NoError(t, h.execDAO.Save(ctx, anExecution))
		assert.NoError(t, msg.Ack())
	}
	t.Fatalf("run %s did not finish, state: %s", aRun.ID, aRun.GetState())
}

func releaseWithPipeline() *model.Release {
	release := model.NewRelease("publish")
	checkout := release.NewStep("checkout").WithAction("vcs", "checkout", nil)
	auth := release.NewStep("auth").WithAction("registry", "authenticate", nil)
	auth.WithDependsOn(checkout.Name)
	publish := release.NewStep("publish").WithAction("registry", "publish", map[string]interface{}{
		"token": "${auth.Token}",
	})
	publish.WithDependsOn(auth.Name)
	return release
}

func TestService_RunToCompletion(t *testing.T) {
	h := newHarness()
	aRun := h.startRun(t, releaseWithPipeline(), nil)

	h.pump(t, aRun, map[string]interface{}{
		"publish/checkout": map[string]interface{}{"Revision": "abc123"},
		"publish/auth":     map[string]interface{}{"Token": "tok"},
		"publish/publish":  map[string]interface{}{"Status": 0},
	})

	assert.Equal(t, execution.StateCompleted, aRun.GetState())
	assert.Empty(t, aRun.Errors)

	checkout, ok := aRun.Session.Get("checkout")
	if assert.True(t, ok) {
		assert.Equal(t, map[string]interface{}{"Revision": "abc123"}, checkout)
	}
	_, ok = aRun.Session.Get("auth")
	assert.True(t, ok)
}

func TestService_WhenSkipsStep(t *testing.T) {
	release := model.NewRelease("publish")
	release.NewStep("checkout").WithAction("vcs", "checkout", nil)
	verify := release.NewStep("verify").WithAction("registry", "verify", nil)
	verify.When = "${dryRun} == true"
	verify.WithDependsOn("checkout")

	h := newHarness()
	aRun := h.startRun(t, release, map[string]interface{}{"dryRun": false})

	h.pump(t, aRun, map[string]interface{}{
		"publish/checkout": map[string]interface{}{"Revision": "abc123"},
	})

	assert.Equal(t, execution.StateCompleted, aRun.GetState())
	_, ok := aRun.Session.Get("verify")
	assert.False(t, ok)
}

func TestService_FailedDependencyFailsRun(t *testing.T) {
	release := model.NewRelease("publish")
	release.NewStep("checkout").WithAction("vcs", "checkout", nil)
	publish := release.NewStep("publish").WithAction("registry", "publish", nil)
	publish.WithDependsOn("checkout")

	h := newHarness()
	aRun := h.startRun(t, release, nil)
	ctx := context.Background()

	for i := 0; i < 100 && aRun.GetState() == execution.StateRunning; i++ {
		assert.NoError(t, h.service.scheduleNextSteps(ctx, aRun))
		if h.queue.Size() == 0 {
			continue
		}
		msg, err := h.queue.Consume(ctx)
		assert.NoError(t, err)
		anExecution := msg.T()
		anExecution.Start()
		anExecution.Fail(assert.AnError)
		assert.NoError(t, h.execDAO.Save(ctx, anExecution))
		assert.NoError(t, msg.Ack())
	}

	assert.Equal(t, execution.StateFailed, aRun.GetState())
	assert.NotEmpty(t, aRun.Errors)
}

func TestService_GateParksExecution(t *testing.T) {
	release := model.NewRelease("publish")
	gated := release.NewStep("publish").WithAction("registry", "publish", nil)
	gated.WithGate(true)

	h := newHarness()
	aRun := h.startRun(t, release, nil)
	ctx := context.Background()

	// Advance until the gated step is parked.
	var parked *execution.StepExecution
	for i := 0; i < 20 && parked == nil; i++ {
		assert.NoError(t, h.service.scheduleNextSteps(ctx, aRun))
		if anExecution := aRun.LookupExecution("publish/publish"); anExecution != nil && anExecution.State.IsWaitForGate() {
			parked = anExecution
		}
	}
	if !assert.NotNil(t, parked) {
		return
	}

	// Approve and let the run finish.
	approved := true
	parked.GateApproved = &approved
	parked.State = execution.StepStatePending
	assert.NoError(t, h.execDAO.Save(ctx, parked))

	h.pump(t, aRun, map[string]interface{}{
		"publish/publish": map[string]interface{}{"Status": 0},
	})
	assert.Equal(t, execution.StateCompleted, aRun.GetState())
}

func TestService_GateRejectionFailsRun(t *testing.T) {
	release := model.NewRelease("publish")
	release.NewStep("publish").WithAction("registry", "publish", nil).WithGate(true)

	h := newHarness()
	aRun := h.startRun(t, release, nil)
	ctx := context.Background()

	for i := 0; i < 20 && aRun.GetState() == execution.StateRunning; i++ {
		assert.NoError(t, h.service.scheduleNextSteps(ctx, aRun))
		if anExecution := aRun.LookupExecution("publish/publish"); anExecution != nil && anExecution.State.IsWaitForGate() {
			rejected := false
			anExecution.GateApproved = &rejected
			anExecution.GateReason = "not this one"
			anExecution.State = execution.StepStatePending
			assert.NoError(t, h.execDAO.Save(ctx, anExecution))
		}
	}

	assert.Equal(t, execution.StateFailed, aRun.GetState())
	assert.NotEmpty(t, aRun.Errors)
}

func TestService_GotoTransition(t *testing.T) {
	release := model.NewRelease("publish")
	publish := release.NewStep("publish").WithAction("registry", "publish", nil)
	publish.WithGoto("${publish.Status} != 0", "rollback")
	release.NewStep("rollback").WithAction("registry", "yank", nil)

	h := newHarness()
	aRun := h.startRun(t, release, nil)

	rollbackRuns := 0
	ctx := context.Background()
	for i := 0; i < 100 && aRun.GetState() == execution.StateRunning; i++ {
		assert.NoError(t, h.service.scheduleNextSteps(ctx, aRun))
		if h.queue.Size() == 0 {
			continue
		}
		msg, err := h.queue.Consume(ctx)
		assert.NoError(t, err)
		anExecution := msg.T()
		anExecution.Start()
		switch anExecution.StepID {
		case "publish/publish":
			anExecution.Output = map[string]interface{}{"Status": 1}
		case "publish/rollback":
			rollbackRuns++
			anExecution.Output = map[string]interface{}{"Status": 0}
		}
		anExecution.Complete()
		assert.NoError(t, h.execDAO.Save(ctx, anExecution))
		assert.NoError(t, msg.Ack())
	}

	assert.Equal(t, execution.StateCompleted, aRun.GetState())
	assert.Equal(t, 1, rollbackRuns)
	_, ok := aRun.Session.Get("rollback")
	assert.True(t, ok)
}
