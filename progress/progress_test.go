package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var seen []Snapshot
	tracker := New("publish/run-1", "publish", func(s Snapshot) {
		seen = append(seen, s)
	})

	tracker.Update(Delta{Total: 1, Pending: 1})
	tracker.Update(Delta{Pending: -1, Running: 1})
	tracker.Update(Delta{Running: -1, Completed: 1})

	snapshot := tracker.Snapshot()
	assert.Equal(t, 1, snapshot.TotalSteps)
	assert.Equal(t, 1, snapshot.CompletedSteps)
	assert.Equal(t, 0, snapshot.RunningSteps)
	assert.Equal(t, 0, snapshot.PendingSteps)
	assert.Equal(t, 3, len(seen))
	assert.Equal(t, "publish", snapshot.Release)
}

func TestProgress_NilSafe(t *testing.T) {
	var tracker *Progress
	tracker.Update(Delta{Total: 1})
	assert.Equal(t, Snapshot{}, tracker.Snapshot())
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	tracker := New("run", "publish", nil)
	ctx := WithTracker(context.Background(), tracker)
	assert.Same(t, tracker, FromContext(ctx))
}
