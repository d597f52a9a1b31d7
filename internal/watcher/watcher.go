// Package watcher provides a debounced filesystem watcher used to hot-reload
// release definitions.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config controls watch behaviour.
type Config struct {
	// Dir is the directory holding release definitions.
	Dir string
	// Debounce collapses bursts of write events into a single notification.
	Debounce time.Duration
	// Extensions filters which files report changes; empty means all.
	Extensions []string
}

// DefaultConfig returns a config watching YAML definitions in dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		Debounce:   200 * time.Millisecond,
		Extensions: []string{".yaml", ".yml"},
	}
}

// Watcher reports debounced changes to files under a directory. Changed file
// names (relative to the watched directory) are delivered on Changes.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	changes   chan string
	done      chan struct{}
}

// New creates a watcher for the configured directory.
func New(config Config) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}
	if err = fsWatcher.Add(config.Dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %v: %w", config.Dir, err)
	}
	return &Watcher{
		config:    config,
		fsWatcher: fsWatcher,
		changes:   make(chan string, 16),
		done:      make(chan struct{}),
	}, nil
}

// Changes returns the channel of changed definition file names.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Start begins the watch loop; it returns immediately.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop terminates the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	pending := map[string]bool{}
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Base(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C
		case <-fire:
			for name := range pending {
				select {
				case w.changes <- name:
				case <-w.done:
					return
				}
			}
			pending = map[string]bool{}
			fire = nil
		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, candidate := range w.config.Extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}
