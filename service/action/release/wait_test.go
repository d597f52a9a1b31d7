package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/runtime/execution"
	rundao "github.com/relforge/tagship/service/dao/run/memory"
)

// TestWaitForRun verifies that WaitForRun returns as soon as the run reaches
// a terminal state and never blocks for the whole timeout.
func TestWaitForRun(t *testing.T) {
	ctx := context.Background()

	aRun := execution.NewRun("publish/run-test", "publish", nil, nil)
	aRun.SetState(execution.StateCompleted)

	runDAO := rundao.New()
	_ = runDAO.Save(ctx, aRun)

	svc := New(nil, nil, runDAO)

	out, err := svc.WaitForRun(ctx, aRun.ID, 1_000)
	assert.NoError(t, err)
	assert.EqualValues(t, execution.StateCompleted, out.State)
	assert.False(t, out.Timeout)
}

func TestWait_Timeout(t *testing.T) {
	ctx := context.Background()

	aRun := execution.NewRun("publish/run-live", "publish", nil, nil)
	aRun.SetState(execution.StateRunning)

	runDAO := rundao.New()
	_ = runDAO.Save(ctx, aRun)

	svc := New(nil, nil, runDAO)
	out, err := svc.WaitForRun(ctx, aRun.ID, 50)
	assert.NoError(t, err)
	assert.True(t, out.Timeout)
	assert.EqualValues(t, execution.StateRunning, out.State)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	aRun := execution.NewRun("publish/run-status", "publish", nil, map[string]interface{}{"tag": "v1.0.0"})
	aRun.SetState(execution.StateRunning)

	runDAO := rundao.New()
	_ = runDAO.Save(ctx, aRun)

	svc := New(nil, nil, runDAO)
	output := &StatusOutput{}
	assert.NoError(t, svc.status(ctx, &StatusInput{RunID: aRun.ID}, output))
	assert.Equal(t, execution.StateRunning, output.State)
	assert.Equal(t, "v1.0.0", output.Output["tag"])

	assert.Error(t, svc.status(ctx, &StatusInput{}, &StatusOutput{}))
}
