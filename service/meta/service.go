// Package meta loads configuration documents through afs, expanding
// ${env.KEY} references before decoding so release definitions can pull
// values from the environment.
package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads YAML documents relative to an optional base URL.
type Service struct {
	fs      afs.Service
	baseURL string
	options []storage.Option
}

// New creates a loader; baseURL may be empty for absolute URLs. Extra
// storage options (an embedded FS for example) are passed to every download.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	return &Service{fs: fs, baseURL: baseURL, options: options}
}

// Load reads, env-expands and decodes the document at URL into target.
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", URL, err)
	}
	return nil
}

// Download reads the raw document with ${env.KEY} references expanded.
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	location := URL
	if s.baseURL != "" && !strings.Contains(URL, "://") && !strings.HasPrefix(URL, "/") {
		location = url.Join(s.baseURL, URL)
	}
	data, err := s.fs.DownloadWithURL(ctx, location, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", location, err)
	}
	return []byte(expandEnvExpr(string(data))), nil
}
