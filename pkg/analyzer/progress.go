package analyzer

import (
	"context"
	"sync/atomic"
)

// Progress is a snapshot reported after each file finishes.
type Progress struct {
	Current int
	Total   int
	// Failed counts finished files that returned an error.
	Failed int
	Path   string
	Err    error
}

// ProgressFunc receives a snapshot each time a file finishes.
type ProgressFunc func(Progress)

// Tracker counts finished files across workers.
// It is safe for concurrent use from multiple goroutines.
type Tracker struct {
	total    atomic.Int64
	current  atomic.Int64
	failed   atomic.Int64
	callback ProgressFunc
}

// NewTracker creates a tracker. callback may be nil.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the expected total by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int64(n))
}

// SetTotal replaces the expected total.
func (t *Tracker) SetTotal(n int) {
	t.total.Store(int64(n))
}

// Done marks path as finished. A non-nil err counts it as failed.
func (t *Tracker) Done(path string, err error) {
	failed := t.failed.Load()
	if err != nil {
		failed = t.failed.Add(1)
	}
	current := t.current.Add(1)
	if t.callback != nil {
		t.callback(Progress{
			Current: int(current),
			Total:   int(t.total.Load()),
			Failed:  int(failed),
			Path:    path,
			Err:     err,
		})
	}
}

// Current returns the number of finished files.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Total returns the expected total.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

// Failed returns the number of finished files that failed.
func (t *Tracker) Failed() int {
	return int(t.failed.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker carried by ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
