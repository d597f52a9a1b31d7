package execution

// StepState represents the current state of a step within a run.
type StepState string

const (
	StepStatePending             StepState = "pending"
	StepStateScheduled           StepState = "scheduled"
	StepStateRunning             StepState = "running"
	StepStateWaitForDependencies StepState = "waitForDependencies"
	StepStateWaitForSubSteps     StepState = "waitForSubSteps"
	// StepStateWaitForGate indicates the step needs an explicit gate
	// decision before it can execute.
	StepStateWaitForGate StepState = "waitForGate"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStatePaused      StepState = "paused"
	StepStateSkipped     StepState = "skipped"
	StepStateCancelled   StepState = "cancelled"
)

// IsWaitForGate reports whether the step is blocked on a gate decision.
func (s StepState) IsWaitForGate() bool {
	return s == StepStateWaitForGate
}

// IsTerminal reports whether no further transitions are possible.
func (s StepState) IsTerminal() bool {
	switch s {
	case StepStateCompleted, StepStateFailed, StepStateSkipped, StepStateCancelled:
		return true
	}
	return false
}
