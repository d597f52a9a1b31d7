package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/runtime/execution"
	executionmem "github.com/relforge/tagship/service/dao/execution/memory"
	runmem "github.com/relforge/tagship/service/dao/run/memory"
	"github.com/relforge/tagship/service/gate"
)

func TestService_Decide(t *testing.T) {
	ctx := context.Background()
	executionDAO := executionmem.New()
	runDAO := runmem.New()

	release := model.NewRelease("publish")
	step := release.NewStep("publish").WithAction("registry", "publish", nil).WithGate(true)

	aRun := execution.NewRun("publish/run-1", "publish", release, nil)
	anExecution := execution.NewStepExecution(aRun.ID, nil, step)
	anExecution.State = execution.StepStateWaitForGate
	aRun.Push(anExecution)
	assert.NoError(t, runDAO.Save(ctx, aRun))
	assert.NoError(t, executionDAO.Save(ctx, anExecution))

	svc := New(executionDAO, WithRunDAO(runDAO))

	err := svc.Request(ctx, &gate.Request{
		RunID:       aRun.ID,
		StepID:      step.ID,
		ExecutionID: anExecution.ID,
		Action:      "registry.publish",
	})
	assert.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	assert.NoError(t, err)
	if !assert.Equal(t, 1, len(pending)) {
		return
	}
	assert.Equal(t, anExecution.ID, pending[0].ID)

	decision, err := svc.Decide(ctx, anExecution.ID, true, "looks good")
	assert.NoError(t, err)
	assert.True(t, decision.Approved)

	// Stored execution moved back to pending with the decision recorded.
	stored, err := executionDAO.Load(ctx, anExecution.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.StepStatePending, stored.State)
	if assert.NotNil(t, stored.GateApproved) {
		assert.True(t, *stored.GateApproved)
	}

	// The copy embedded in the run stack was updated too.
	inRun := aRun.LookupExecution(step.ID)
	if assert.NotNil(t, inRun) {
		assert.Equal(t, execution.StepStatePending, inRun.State)
		assert.NotNil(t, inRun.GateApproved)
	}

	// No pending requests remain and a second decision is rejected.
	pending, err = svc.ListPending(ctx)
	assert.NoError(t, err)
	assert.Empty(t, pending)
	_, err = svc.Decide(ctx, anExecution.ID, false, "")
	assert.Error(t, err)
}

func TestService_Decide_Reject(t *testing.T) {
	ctx := context.Background()
	executionDAO := executionmem.New()
	svc := New(executionDAO)

	anExecution := &execution.StepExecution{ID: "run-1-step-1", RunID: "run-1", StepID: "step"}
	anExecution.State = execution.StepStateWaitForGate
	assert.NoError(t, executionDAO.Save(ctx, anExecution))

	assert.NoError(t, svc.Request(ctx, &gate.Request{RunID: "run-1", ExecutionID: anExecution.ID}))
	decision, err := svc.Decide(ctx, anExecution.ID, false, "wrong tag")
	assert.NoError(t, err)
	assert.False(t, decision.Approved)

	stored, err := executionDAO.Load(ctx, anExecution.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored.GateApproved) {
		assert.False(t, *stored.GateApproved)
	}
	assert.Equal(t, "wrong tag", stored.GateReason)
}
