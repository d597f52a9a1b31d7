// Package progress provides a lightweight tracker that keeps aggregated
// step counters (total, completed, failed, ...) for a single release run.
// The tracker lives in the execution context so every component receiving
// the context can atomically update counters via the Delta helper without
// a global registry.
package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the allocator,
// executor or processor. Fields are signed so they can increment or
// decrement.
type Delta struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Running   int
	Pending   int
}

// Snapshot is a point-in-time copy of the run counters.
type Snapshot struct {
	// Identification, informative only; filled when the run starts.
	RunID     string
	Release   string
	StartedAt time.Time

	TotalSteps     int
	CompletedSteps int
	SkippedSteps   int
	FailedSteps    int
	RunningSteps   int
	PendingSteps   int
}

// Progress keeps aggregated step counters for a run. It is safe for
// concurrent use.
type Progress struct {
	mu       sync.Mutex
	current  Snapshot
	onChange func(Snapshot)
}

// New creates a tracker for the given run.
func New(runID, release string, onChange func(Snapshot)) *Progress {
	return &Progress{
		current: Snapshot{
			RunID:     runID,
			Release:   release,
			StartedAt: time.Now(),
		},
		onChange: onChange,
	}
}

// Update applies the supplied delta to the tracker. The onChange callback,
// when registered, receives a copy of the updated counters outside the
// critical section so slow callbacks never block engine internals.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}

	p.mu.Lock()
	p.current.TotalSteps += d.Total
	p.current.CompletedSteps += d.Completed
	p.current.SkippedSteps += d.Skipped
	p.current.FailedSteps += d.Failed
	p.current.RunningSteps += d.Running
	p.current.PendingSteps += d.Pending
	snapshot := p.current
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables the callback; only one callback can be active.
func (p *Progress) OnChange(cb func(Snapshot)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds the tracker in a derived context.
func WithTracker(ctx context.Context, tracker *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext returns the tracker stored in the context or nil.
func FromContext(ctx context.Context) *Progress {
	if ctx == nil {
		return nil
	}
	if tracker, ok := ctx.Value(trackerKey).(*Progress); ok {
		return tracker
	}
	return nil
}
