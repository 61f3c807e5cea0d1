package engine

import (
	"sync"
	"time"

	"github.com/workviz/workviz/pkg/debug"
)

// Refresh delay bounds. A delay of zero disables debouncing entirely.
const (
	DefaultRefreshDelay = 300 * time.Millisecond
	MaxRefreshDelay     = 5 * time.Second
)

// Coordinator collapses bursts of redraw requests into a single refresh
// action. It is the second debounce layer: the watcher already coalesces
// rapid saves of the same file, but edits to N different files still arrive
// as N requests here.
//
// At most one timer is pending at any time; scheduling always cancels the
// previous one first.
type Coordinator struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	action func()
}

// NewCoordinator creates a coordinator that runs action when a refresh is
// due. The delay is clamped to [0, MaxRefreshDelay].
func NewCoordinator(delay time.Duration, action func()) *Coordinator {
	if action == nil {
		action = func() {}
	}
	return &Coordinator{delay: clampRefreshDelay(delay), action: action}
}

// ScheduleRefresh requests a refresh. With a zero delay the action runs
// immediately in the caller's goroutine; otherwise any pending timer is
// replaced by a fresh one for the full delay.
func (c *Coordinator) ScheduleRefresh() {
	c.mu.Lock()
	if c.delay == 0 {
		c.mu.Unlock()
		c.action()
		return
	}

	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		c.action()
	})
	c.mu.Unlock()
}

// RefreshNow cancels any pending timer and runs the refresh action
// immediately, bypassing the debounce. Used for user-initiated refresh and
// for the forced refresh after a settled git operation.
func (c *Coordinator) RefreshNow() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
	c.action()
}

// SetDelay changes the delay for future ScheduleRefresh calls. A timer that
// is already running keeps its original duration.
func (c *Coordinator) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = clampRefreshDelay(d)
	debug.Log("refresh delay set to %v", c.delay)
}

// Delay returns the current debounce delay.
func (c *Coordinator) Delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// Pending reports whether a refresh timer is currently armed.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Dispose cancels any pending timer without firing it. Shutdown path only;
// contrast with the git-operation completion path, which flushes.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func clampRefreshDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxRefreshDelay {
		return MaxRefreshDelay
	}
	return d
}
