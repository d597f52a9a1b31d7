// Package fs implements a file system backed run store; each run is one
// JSON document under the base path.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/dao/criteria"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// Service persists runs through afs, so the base path can point at local
// disk or any registered storage scheme.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ dao.Service[string, execution.Run] = (*Service)(nil)

// New creates the store and its base directory.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fileService := afs.New()
	ctx := context.Background()
	if exists, _ := fileService.Exists(ctx, basePath); !exists {
		if err := fileService.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &Service{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       fileService,
	}, nil
}

// Save persists a run as JSON.
func (s *Service) Save(ctx context.Context, run *execution.Run) error {
	if run == nil {
		return dao.ErrNilEntity
	}
	if run.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	dest := s.runPath(run.ID)
	if err = s.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save run to %s: %w", dest, err)
	}
	return nil
}

// Load retrieves a run by ID.
func (s *Service) Load(ctx context.Context, id string) (*execution.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	dest := s.runPath(id)
	exists, err := s.fs.Exists(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check run %s: %w", id, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var run execution.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// Delete removes a run.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := s.runPath(id)
	exists, err := s.fs.Exists(ctx, dest)
	if err != nil {
		return fmt.Errorf("failed to check run %s: %w", id, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	if err := s.fs.Delete(ctx, dest); err != nil {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// List returns all stored runs matching the optional state filter. Corrupt
// files are skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}
	var runs []*execution.Run
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		var run execution.Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		if !criteria.FilterByState(run.State, parameters) {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

func (s *Service) runPath(id string) string {
	return path.Join(s.basePath, id+".json")
}
