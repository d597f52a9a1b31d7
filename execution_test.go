package tagship

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/runtime/execution"
)

// TestRuntime_ScheduleExecution verifies an ad-hoc single-action execution
// travels the shared queue and completes.
func TestRuntime_ScheduleExecution(t *testing.T) {
	svc := New()
	ctx := svc.NewContext(context.Background())
	rt := svc.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	wait, err := rt.ScheduleExecution(ctx, &graph.Action{Service: "nop", Method: "nop"}, nil)
	require.NoError(t, err)

	anExecution, err := wait(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, execution.StepStateCompleted, anExecution.State)
}

// TestRuntime_ScheduleExecution_Invalid verifies the action is validated up
// front.
func TestRuntime_ScheduleExecution_Invalid(t *testing.T) {
	svc := New()
	rt := svc.Runtime()
	_, err := rt.ScheduleExecution(context.Background(), &graph.Action{}, nil)
	require.Error(t, err)
	_, err = rt.ScheduleExecution(context.Background(), nil, nil)
	require.Error(t, err)
}
