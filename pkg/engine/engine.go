package engine

import (
	"time"

	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

// Options configures a new Engine.
type Options struct {
	// RefreshDelay is the redraw debounce. Zero runs refreshes immediately
	// with no coalescing; negative selects DefaultRefreshDelay.
	RefreshDelay time.Duration
	// SettleDelay is the git-operation settle timer duration.
	SettleDelay time.Duration
	// DisableGitDetection turns the repository-operation detector off.
	DisableGitDetection bool
	// OnRefresh is invoked for every fired refresh action, in addition to
	// the Refresh channel.
	OnRefresh func()
}

// Engine wires the multi-tier cache, the refresh coordinator and the
// git-operation detector into one control flow: change notifications in,
// at most one coalesced redraw out.
type Engine struct {
	store       *Store
	coordinator *Coordinator
	detector    *GitOpDetector
	refreshCh   chan struct{}
}

// New builds an engine around the given item loader.
func New(load LoadFunc, opts Options) *Engine {
	if opts.RefreshDelay < 0 {
		opts.RefreshDelay = DefaultRefreshDelay
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	e := &Engine{
		store:     NewStore(load),
		refreshCh: make(chan struct{}, 1),
	}
	action := func() {
		if opts.OnRefresh != nil {
			opts.OnRefresh()
		}
		select {
		case e.refreshCh <- struct{}{}:
		default:
		}
	}
	e.coordinator = NewCoordinator(opts.RefreshDelay, action)
	e.detector = NewGitOpDetector(opts.SettleDelay, func() {
		e.store.InvalidateAll()
		e.coordinator.RefreshNow()
	})
	if opts.DisableGitDetection {
		e.detector.SetEnabled(false)
	}
	return e
}

// HandleChange processes one de-duplicated file-change notification: the
// item cache entry is invalidated no matter what (correctness must not
// depend on timing), but redraw scheduling is suppressed while a git
// operation is being absorbed.
func (e *Engine) HandleChange(path string) {
	e.store.Invalidate(path)
	if e.detector.InProgress() {
		return
	}
	e.coordinator.ScheduleRefresh()
}

// HandleGitSignal feeds one repository-metadata signal into the detector.
func (e *Engine) HandleGitSignal(kind GitSignalKind) {
	e.detector.Signal(kind)
}

// Refresh delivers one token per fired refresh action. Consumers drain it
// and re-query the read surface.
func (e *Engine) Refresh() <-chan struct{} { return e.refreshCh }

// Read surface for rendering collaborators.

func (e *Engine) GetRoots(key hierarchy.GroupKey) ([]*hierarchy.Node, error) {
	return e.store.GetRoots(key)
}

func (e *Engine) GetChildren(node *hierarchy.Node) []*hierarchy.Node {
	return e.store.GetChildren(node)
}

func (e *Engine) GetProgress(key hierarchy.GroupKey, node *hierarchy.Node) *model.ProgressInfo {
	return e.store.GetProgress(key, node)
}

func (e *Engine) GetItems() ([]model.WorkItem, error) {
	return e.store.GetItems()
}

// RefreshNow forces an immediate full invalidation and redraw, bypassing the
// debounce. Bound to the manual refresh key in the UI.
func (e *Engine) RefreshNow() {
	e.store.InvalidateAll()
	e.coordinator.RefreshNow()
}

// Store exposes the cache for configuration surfaces and tests.
func (e *Engine) Store() *Store { return e.store }

// Coordinator exposes the refresh coordinator (delay configuration).
func (e *Engine) Coordinator() *Coordinator { return e.coordinator }

// Detector exposes the git-operation detector (enable/settle configuration).
func (e *Engine) Detector() *GitOpDetector { return e.detector }

// Close cancels all pending timers without firing them.
func (e *Engine) Close() {
	e.coordinator.Dispose()
	e.detector.Dispose()
}
