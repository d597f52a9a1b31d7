package storage

import (
	"context"
	"fmt"

	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
)

// ListInput defines parameters for listing assets
type ListInput struct {
	URL       string `json:"url" required:"true"`
	Recursive bool   `json:"recursive,omitempty"`
	PageSize  int    `json:"pageSize,omitempty" description:"maximum number of results"`
}

// ListOutput contains results from a list operation
type ListOutput struct {
	Assets []*Asset `json:"assets,omitempty"`
}

// List lists files and directories at the specified URL
func (s *Service) List(ctx context.Context, input *ListInput, output *ListOutput) error {
	if input.URL == "" {
		return fmt.Errorf("URL is required")
	}
	var options []storage.Option
	if input.Recursive {
		options = append(options, option.NewRecursive(true))
	}
	if input.PageSize > 0 {
		options = append(options, option.NewPage(0, input.PageSize))
	}

	objects, err := s.fs.List(ctx, input.URL, options...)
	if err != nil {
		return fmt.Errorf("failed to list objects at %s: %w", input.URL, err)
	}
	output.Assets = make([]*Asset, 0, len(objects))
	for _, object := range objects {
		output.Assets = append(output.Assets, newAsset(object.URL(), object))
	}
	return nil
}
