package release

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/types"
	"github.com/relforge/tagship/runtime/execution"
)

type RunInput struct {
	Location    string                 `json:"location,omitempty"`
	Source      []byte                 `json:"source,omitempty"`
	Release     *model.Release         `json:"release,omitempty"`
	Event       *model.RefEvent        `json:"event,omitempty"`
	Context     map[string]interface{} `json:"parameters,omitempty"`
	IgnoreError bool                   `json:"ignoreError,omitempty"`
	Async       bool                   `json:"async,omitempty"`
	WaitTimeMs  int                    `json:"waitTimeMs,omitempty"`
}

type RunOutput struct {
	RunID  string
	Output map[string]interface{}
	Errors map[string]string
	State  string
}

func (i *RunInput) Init() {
	if i.WaitTimeMs == 0 && !i.Async {
		i.WaitTimeMs = 300000
	}
}

func (i *RunInput) Validate() error {
	if i.Release != nil || len(i.Source) > 0 {
		return nil
	}
	if i.Location == "" {
		return fmt.Errorf("location is required")
	}
	return nil
}

func (s *Service) run(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*RunInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*RunOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}

	input.Init()
	if err := input.Validate(); err != nil {
		return err
	}
	aRelease, err := s.ensureRelease(ctx, input.Location, input.Source, input.Release)
	if err != nil {
		return err
	}

	aRun, err := s.processor.StartRun(ctx, aRelease, input.Event, input.Context)
	if err != nil {
		return err
	}
	output.RunID = aRun.ID
	if input.Async {
		return nil
	}

	waitInput := &WaitInput{
		RunID:       aRun.ID,
		TimeoutInMs: input.WaitTimeMs,
	}
	waitOutput := &WaitOutput{}
	if err := s.wait(ctx, waitInput, waitOutput); err != nil {
		return err
	}
	if waitOutput.State == execution.StateFailed && !input.IgnoreError {
		errorInfo, _ := json.Marshal(waitOutput.Errors)
		return fmt.Errorf("failed to run %v, due to %s", aRun.ID, errorInfo)
	}
	output.Output = waitOutput.Output
	output.Errors = waitOutput.Errors
	output.State = waitOutput.State
	return nil
}
