package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the default debounce window for file events.
const DefaultDebounceDuration = 100 * time.Millisecond

// Debouncer coalesces rapid triggers into a single callback invocation.
// Editors often save a file several times in quick succession (truncate,
// write, rename); only the last state matters.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
}

// NewDebouncer creates a debouncer with the given window. A non-positive
// duration selects DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Trigger schedules fn to run after the debounce window. A trigger while a
// previous one is pending restarts the window; only the latest fn runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending callback without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Duration returns the debounce window.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
