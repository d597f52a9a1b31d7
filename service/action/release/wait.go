package release

import (
	"context"
	"fmt"
	"time"

	"github.com/relforge/tagship/model/types"
	"github.com/relforge/tagship/runtime/execution"
)

type WaitInput struct {
	RunID             string `json:"runID,omitempty"`
	TimeoutInMs       int    `json:"timeoutMs,omitempty"`
	PollFrequencyInMs int    `json:"pollTimeMs,omitempty"`
}

func (i *WaitInput) Init() {
	if i.PollFrequencyInMs == 0 {
		i.PollFrequencyInMs = 200
	}
	if i.TimeoutInMs == 0 {
		i.TimeoutInMs = 300000
	}
}

func (i *WaitInput) Validate() error {
	if i.RunID == "" {
		return fmt.Errorf("runID is required")
	}
	return nil
}

// WaitOutput represents a wait output
type WaitOutput execution.RunOutput

// WaitForRun waits for a run to reach a terminal state.
func (s *Service) WaitForRun(ctx context.Context, id string, timeoutMs int) (*WaitOutput, error) {
	input := &WaitInput{RunID: id, TimeoutInMs: timeoutMs}
	input.Init()
	output := &WaitOutput{}
	return output, s.wait(ctx, input, output)
}

func (s *Service) wait(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*WaitInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*WaitOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}

	input.Init()
	if err := input.Validate(); err != nil {
		return err
	}

	pollFrequency := time.Millisecond * time.Duration(input.PollFrequencyInMs)
	var expiry time.Time
	if input.TimeoutInMs > 0 {
		expiry = time.Now().Add(time.Millisecond * time.Duration(input.TimeoutInMs))
	}

	// Populate the run ID up front so the caller can correlate the result
	// even on timeout.
	output.RunID = input.RunID

outer:
	for {
		aRun, err := s.runDAO.Load(ctx, input.RunID)
		if err != nil {
			return err
		}
		switch aRun.GetState() {
		case execution.StateCompleted, execution.StateFailed, execution.StateCancelled:
			break outer
		}
		if !expiry.IsZero() && time.Now().After(expiry) {
			output.Timeout = true
			break outer
		}
		time.Sleep(pollFrequency)
	}

	aRun, err := s.runDAO.Load(ctx, input.RunID)
	if err != nil {
		return err
	}
	output.State = aRun.GetState()
	output.Output = aRun.Session.GetAll()
	output.Errors = aRun.Errors
	finishedAt := aRun.FinishedAt
	if finishedAt == nil {
		ts := time.Now()
		finishedAt = &ts
	}
	output.TimeTaken = finishedAt.Sub(aRun.CreatedAt)
	return nil
}
