package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Changes(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig(dir)
	config.Debounce = 20 * time.Millisecond
	aWatcher, err := New(config)
	require.NoError(t, err)
	aWatcher.Start()
	defer aWatcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "publish.yaml"), []byte("name: publish"), 0o644))

	select {
	case name := <-aWatcher.Changes():
		assert.Equal(t, "publish.yaml", name)
	case <-time.After(3 * time.Second):
		t.Fatal("change notification never arrived")
	}

	// The .txt write was filtered out, nothing else should be pending.
	select {
	case name := <-aWatcher.Changes():
		t.Fatalf("unexpected change: %v", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(DefaultConfig(filepath.Join(t.TempDir(), "missing")))
	assert.Error(t, err)
}
