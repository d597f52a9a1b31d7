package release

import (
	"context"
	"fmt"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/types"
)

type StartInput struct {
	Location string                 `json:"location,omitempty"`
	Source   []byte                 `json:"source,omitempty"`
	Release  *model.Release         `json:"release,omitempty"`
	Event    *model.RefEvent        `json:"event,omitempty"`
	Context  map[string]interface{} `json:"parameters,omitempty"`
}

type StartOutput struct {
	RunID string
	State string
}

func (i *StartInput) Validate() error {
	if i.Release != nil || len(i.Source) > 0 {
		return nil
	}
	if i.Location == "" {
		return fmt.Errorf("location is required")
	}
	return nil
}

func (s *Service) start(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*StartInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*StartOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}

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
	output.State = aRun.GetState()
	return nil
}
