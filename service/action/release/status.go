package release

import (
	"context"
	"fmt"

	"github.com/relforge/tagship/model/types"
)

type StatusInput struct {
	RunID string `json:"runID,omitempty"`
}

func (i *StatusInput) Validate() error {
	if i.RunID == "" {
		return fmt.Errorf("runID is required")
	}
	return nil
}

type StatusOutput struct {
	State  string
	Output map[string]interface{}
	Errors map[string]string
}

func (s *Service) status(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*StatusInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*StatusOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}

	if err := input.Validate(); err != nil {
		return err
	}
	aRun, err := s.runDAO.Load(ctx, input.RunID)
	if err != nil {
		return err
	}
	output.State = aRun.GetState()
	output.Output = aRun.Session.GetAll()
	output.Errors = aRun.Errors
	return nil
}
