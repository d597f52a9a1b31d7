package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/viant/afs/url"
)

// DownloadInput defines parameters for downloading assets
type DownloadInput struct {
	Assets      []string `json:"assets" required:"true"`
	IncludeData bool     `json:"includeData,omitempty" description:"include file data in the response"`
	Dest        string   `json:"dest,omitempty" description:"destination path to copy assets to"`
}

// DownloadOutput contains results from a download operation
type DownloadOutput struct {
	Assets []*Asset `json:"assets,omitempty"`
}

// Download fetches each asset URL, optionally inlining its data and copying
// it to a destination.
func (s *Service) Download(ctx context.Context, input *DownloadInput, output *DownloadOutput) error {
	if len(input.Assets) == 0 {
		return fmt.Errorf("at least one asset URL is required")
	}
	output.Assets = make([]*Asset, 0, len(input.Assets))
	for _, assetURL := range input.Assets {
		if assetURL == "" {
			continue
		}
		asset, err := s.downloadAsset(ctx, assetURL, input)
		if err != nil {
			return err
		}
		output.Assets = append(output.Assets, asset)
	}
	return nil
}

func (s *Service) downloadAsset(ctx context.Context, assetURL string, input *DownloadInput) (*Asset, error) {
	exists, err := s.fs.Exists(ctx, assetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %s exists: %w", assetURL, err)
	}
	if !exists {
		return nil, fmt.Errorf("asset does not exist: %s", assetURL)
	}
	source, err := s.fs.Object(ctx, assetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get source for %s: %w", assetURL, err)
	}
	if source.IsDir() {
		return nil, fmt.Errorf("cannot download directory, use list operation first: %s", assetURL)
	}

	asset := newAsset(assetURL, source)
	if input.IncludeData {
		if asset.Data, err = s.fs.DownloadWithURL(ctx, assetURL); err != nil {
			return nil, fmt.Errorf("failed to download data from %s: %w", assetURL, err)
		}
	}
	if input.Dest != "" {
		destPath := input.Dest
		// When the destination is a directory, keep the source file name.
		if object, _ := s.fs.Object(ctx, destPath); object != nil && object.IsDir() {
			destPath = url.Join(destPath, filepath.Base(assetURL))
		}
		if err := s.fs.Copy(ctx, assetURL, destPath); err != nil {
			return nil, fmt.Errorf("failed to copy %s to %s: %w", assetURL, destPath, err)
		}
	}
	return asset, nil
}
