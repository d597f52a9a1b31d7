// Package release exposes run control as an action service so pipelines
// and the runtime can launch and observe sub-releases.
package release

import (
	"context"
	"fmt"
	"reflect"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/types"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	releasedao "github.com/relforge/tagship/service/dao/release"
	"github.com/relforge/tagship/service/processor"
)

const name = "release"

// Service controls release runs.
type Service struct {
	processor  *processor.Service
	releaseDAO *releasedao.Service
	runDAO     dao.Service[string, execution.Run]
}

// New creates a new release control service
func New(processor *processor.Service, releaseDAO *releasedao.Service, runDAO dao.Service[string, execution.Run]) *Service {
	return &Service{
		processor:  processor,
		releaseDAO: releaseDAO,
		runDAO:     runDAO,
	}
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "status",
			Description: "Retrieves the current state and output of a run by its ID.",
			Input:       reflect.TypeOf(&StatusInput{}),
			Output:      reflect.TypeOf(&StatusOutput{}),
		},
		{
			Name:        "run",
			Description: "Starts a release run and by default waits for it to finish, returning its state, output and errors.",
			Input:       reflect.TypeOf(&RunInput{}),
			Output:      reflect.TypeOf(&RunOutput{}),
		},
		{
			Name:        "start",
			Description: "Starts a release run without waiting for completion.",
			Input:       reflect.TypeOf(&StartInput{}),
			Output:      reflect.TypeOf(&StartOutput{}),
		},
		{
			Name:        "wait",
			Description: "Polls a run until completion or timeout, returning its final state, output, errors and timing.",
			Input:       reflect.TypeOf(&WaitInput{}),
			Output:      reflect.TypeOf(&WaitOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch name {
	case "run":
		return s.run, nil
	case "start":
		return s.start, nil
	case "status":
		return s.status, nil
	case "wait":
		return s.wait, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

// ensureRelease resolves the release definition from the input.
func (s *Service) ensureRelease(ctx context.Context, location string, source []byte, aRelease *model.Release) (*model.Release, error) {
	if aRelease != nil {
		return aRelease, nil
	}
	var err error
	if len(source) > 0 {
		aRelease, err = s.releaseDAO.DecodeYAML(source)
	} else {
		aRelease, err = s.releaseDAO.Load(ctx, location)
	}
	if err != nil {
		return nil, err
	}
	if aRelease.Pipeline == nil {
		return nil, fmt.Errorf("release %v has no pipeline", location)
	}
	return aRelease, nil
}
