package execution

import "testing"

// TestRunRemove verifies that removing an execution from the stack keeps the
// remaining order intact and removes exactly one element regardless of its
// position (first, middle, last).
func TestRunRemove(t *testing.T) {
	newExec := func(id string) *StepExecution { return &StepExecution{ID: id} }

	stack := []*StepExecution{newExec("a"), newExec("b"), newExec("c")}

	run := &Run{Stack: append([]*StepExecution(nil), stack...)}

	run.Remove(stack[1]) // remove "b" (middle element)

	if got, want := len(run.Stack), 2; got != want {
		t.Fatalf("after removal expected stack length %d, got %d", want, got)
	}

	// Expect order [a, c]
	if run.Stack[0].ID != "a" || run.Stack[1].ID != "c" {
		t.Fatalf("unexpected stack order after removal: %+v", run.Stack)
	}

	// Remove last element
	run.Remove(run.Stack[1]) // removes "c"
	if got, want := len(run.Stack), 1; got != want || run.Stack[0].ID != "a" {
		t.Fatalf("unexpected stack after removing last element: %+v", run.Stack)
	}
}

func TestRunSetState(t *testing.T) {
	run := NewRun("run-1", "publish-release", nil, nil)
	if run.GetState() != StatePending {
		t.Fatalf("expected pending state, got %v", run.GetState())
	}
	run.SetState(StateRunning)
	if run.FinishedAt != nil {
		t.Fatalf("running run should not be finished")
	}
	run.SetState(StateFailed)
	if run.FinishedAt == nil {
		t.Fatalf("failed run should record finish time")
	}
}
