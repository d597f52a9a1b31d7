package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs/file"
)

// UploadInput defines parameters for uploading assets
type UploadInput struct {
	Assets []*Asset `json:"assets" required:"true"`
}

// UploadOutput contains results from an upload operation
type UploadOutput struct {
	Assets []*Asset `json:"assets,omitempty"`
}

// Upload writes each asset's data to its URL and reports the stored objects.
func (s *Service) Upload(ctx context.Context, input *UploadInput, output *UploadOutput) error {
	if len(input.Assets) == 0 {
		return fmt.Errorf("at least one asset is required for upload")
	}
	output.Assets = make([]*Asset, 0, len(input.Assets))
	for _, asset := range input.Assets {
		if asset.URL == "" {
			return fmt.Errorf("asset URL cannot be empty")
		}
		if err := s.fs.Upload(ctx, asset.URL, file.DefaultFileOsMode, bytes.NewReader(asset.Data)); err != nil {
			return err
		}
		object, err := s.fs.Object(ctx, asset.URL)
		if err != nil {
			return fmt.Errorf("failed to get object for %s: %w", asset.URL, err)
		}
		output.Assets = append(output.Assets, newAsset(asset.URL, object))
	}
	return nil
}
