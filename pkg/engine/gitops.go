package engine

import (
	"sync"
	"time"

	"github.com/workviz/workviz/pkg/debug"
)

// Settle delay bounds for git-operation detection.
const (
	DefaultSettleDelay = 500 * time.Millisecond
	MinSettleDelay     = 100 * time.Millisecond
	MaxSettleDelay     = 5 * time.Second
)

// GitSignalKind names the two repository-metadata signals that drive the
// detector: the ref pointer moving (checkout, merge, reset) and the staging
// index being rewritten.
type GitSignalKind int

const (
	SignalRefChanged GitSignalKind = iota
	SignalIndexChanged
)

func (k GitSignalKind) String() string {
	switch k {
	case SignalRefChanged:
		return "ref-changed"
	case SignalIndexChanged:
		return "index-changed"
	default:
		return "unknown"
	}
}

// GitOpDetector recognizes that a burst of record changes belongs to one
// atomic repository operation. Two states: idle and operation-in-progress.
// The first signal starts a settle timer; every further signal resets it.
// Only when the timer runs its full duration uncancelled does the detector
// fire onSettle — one full invalidation plus one forced refresh, instead of
// dozens of partial redraws while git rewrites files.
type GitOpDetector struct {
	mu       sync.Mutex
	enabled  bool
	settle   time.Duration
	timer    *time.Timer
	active   bool
	started  time.Time
	onSettle func()
}

// NewGitOpDetector creates an enabled detector. onSettle is invoked after an
// operation settles; callers wire it to InvalidateAll + RefreshNow.
func NewGitOpDetector(settle time.Duration, onSettle func()) *GitOpDetector {
	if onSettle == nil {
		onSettle = func() {}
	}
	return &GitOpDetector{
		enabled:  true,
		settle:   clampSettleDelay(settle),
		onSettle: onSettle,
	}
}

// Signal feeds one repository-metadata signal into the state machine.
func (d *GitOpDetector) Signal(kind GitSignalKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled {
		return
	}

	if !d.active {
		d.active = true
		d.started = time.Now()
		debug.Log("git operation started (%s)", kind)
	} else {
		debug.Log("git operation signal (%s), resetting settle timer", kind)
	}

	// Reset rather than re-transition: one timer, restarted on every signal.
	d.stopTimerLocked()
	d.timer = time.AfterFunc(d.settle, d.settled)
}

// settled transitions back to idle and fires the completion action. The
// action runs outside the lock so it may call back into the detector.
func (d *GitOpDetector) settled() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	elapsed := time.Since(d.started)
	d.mu.Unlock()

	debug.Log("git operation settled after %v", elapsed)
	d.onSettle()
}

// InProgress reports whether an operation burst is currently being absorbed.
func (d *GitOpDetector) InProgress() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetEnabled toggles detection. Disabling while an operation is in progress
// cancels the settle timer and returns to idle WITHOUT firing the completion
// action: disabling is a configuration change, not an operation completion.
func (d *GitOpDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.enabled = enabled
	if !enabled && d.active {
		d.stopTimerLocked()
		d.active = false
		debug.Log("git detection disabled mid-operation; cancelled without firing")
	}
}

// Enabled reports whether detection is on.
func (d *GitOpDetector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// SetSettleDelay changes the settle delay for future signals; a running
// timer keeps its original duration.
func (d *GitOpDetector) SetSettleDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settle = clampSettleDelay(delay)
}

// SettleDelay returns the current settle delay.
func (d *GitOpDetector) SettleDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settle
}

// Dispose cancels any pending settle timer without firing.
func (d *GitOpDetector) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.active = false
}

func (d *GitOpDetector) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func clampSettleDelay(d time.Duration) time.Duration {
	if d < MinSettleDelay {
		return MinSettleDelay
	}
	if d > MaxSettleDelay {
		return MaxSettleDelay
	}
	return d
}
