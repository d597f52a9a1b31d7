package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/runtime/execution"
	executionmem "github.com/relforge/tagship/service/dao/execution/memory"
	"github.com/relforge/tagship/service/gate"
	"github.com/relforge/tagship/service/gate/memory"
)

func awaitDecision(t *testing.T, svc gate.Service) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		pending, err := svc.ListPending(context.Background())
		assert.NoError(t, err)
		if len(pending) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("request was not decided in time")
}

func TestAutoApprove(t *testing.T) {
	ctx := context.Background()
	executionDAO := executionmem.New()
	anExecution := &execution.StepExecution{ID: "run-1-step-1", RunID: "run-1", StepID: "step"}
	assert.NoError(t, executionDAO.Save(ctx, anExecution))

	svc := memory.New(executionDAO)
	stop := gate.AutoApprove(ctx, svc, 10*time.Millisecond)
	defer stop()

	assert.NoError(t, svc.Request(ctx, &gate.Request{RunID: "run-1", ExecutionID: anExecution.ID}))
	awaitDecision(t, svc)

	stored, err := executionDAO.Load(ctx, anExecution.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored.GateApproved) {
		assert.True(t, *stored.GateApproved)
	}
}

func TestAutoReject(t *testing.T) {
	ctx := context.Background()
	executionDAO := executionmem.New()
	anExecution := &execution.StepExecution{ID: "run-2-step-1", RunID: "run-2", StepID: "step"}
	assert.NoError(t, executionDAO.Save(ctx, anExecution))

	svc := memory.New(executionDAO)
	stop := gate.AutoReject(ctx, svc, "maintenance window", 10*time.Millisecond)
	defer stop()

	assert.NoError(t, svc.Request(ctx, &gate.Request{RunID: "run-2", ExecutionID: anExecution.ID}))
	awaitDecision(t, svc)

	stored, err := executionDAO.Load(ctx, anExecution.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, stored.GateApproved) {
		assert.False(t, *stored.GateApproved)
	}
	assert.Equal(t, "maintenance window", stored.GateReason)
}
