// Package watcher delivers de-duplicated change notifications for a plan
// directory tree, plus repository-metadata signals from the enclosing git
// repo. It uses fsnotify where reliable and falls back to polling on remote
// filesystems or when forced.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/workviz/workviz/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Op classifies a change event.
type Op int

const (
	OpCreated Op = iota
	OpChanged
	OpDeleted
)

func (op Op) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpChanged:
		return "changed"
	case OpDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one debounced change to a record file. Path is absolute.
type Event struct {
	Op   Op
	Path string
}

// GitSignalKind identifies which piece of repository metadata moved.
type GitSignalKind int

const (
	GitRefChanged GitSignalKind = iota
	GitIndexChanged
)

// GitSignal reports that the enclosing repository's HEAD or index changed.
// These are delivered raw, without debouncing; consumers absorb bursts.
type GitSignal struct {
	Kind GitSignalKind
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the per-path debounce window.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnEvent sets the callback invoked for every record change event.
func WithOnEvent(fn func(Event)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// WithOnGitSignal sets the callback invoked for repository-metadata signals.
func WithOnGitSignal(fn func(GitSignal)) Option {
	return func(w *Watcher) {
		w.onGitSignal = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithGitDir overrides the git directory to watch for HEAD/index changes.
// By default it is discovered by walking up from the plan root; set it to ""
// to disable git watching entirely.
func WithGitDir(dir string) Option {
	return func(w *Watcher) {
		w.gitDir = dir
		w.gitDirSet = true
	}
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a directory tree of record files.
type Watcher struct {
	root             string
	gitDir           string
	gitDirSet        bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onEvent          func(Event)
	onGitSignal      func(GitSignal)
	onError          func(error)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncers  map[string]*Debouncer
	useFallback bool
	snapshot    map[string]fileState
	gitState    map[string]fileState

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.RWMutex
	eventCh chan Event
	gitCh   chan GitSignal
}

// NewWatcher creates a watcher for the given plan root.
func NewWatcher(root string, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:             absRoot,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onEvent:          func(Event) {},
		onGitSignal:      func(GitSignal) {},
		onError:          func(error) {},
		debouncers:       make(map[string]*Debouncer),
		eventCh:          make(chan Event, 64),
		gitCh:            make(chan GitSignal, 8),
	}

	for _, opt := range opts {
		opt(w)
	}

	if !w.gitDirSet {
		w.gitDir = findGitDir(absRoot)
	}

	return w, nil
}

// gitMetaFiles are the repository-metadata files whose changes signal a git
// operation in flight.
var gitMetaFiles = map[string]GitSignalKind{
	"HEAD":  GitRefChanged,
	"index": GitIndexChanged,
}

// findGitDir walks up from root looking for a .git directory.
func findGitDir(root string) string {
	for dir := root; ; {
		candidate := filepath.Join(dir, ".git")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Start begins watching the tree.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.forcePollEnv = false
	w.fsType = FSTypeUnknown

	if envBool("WV_FORCE_POLLING") || envBool("WV_FORCE_POLL") {
		w.forcePollEnv = true
	}

	w.fsType = DetectFilesystemType(w.root)
	if isRemoteFilesystem(w.fsType) {
		w.useFallback = true
	}
	if w.forcePoll || w.forcePollEnv {
		w.useFallback = true
	}

	if info, err := os.Stat(w.root); err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		return err
	} else if !info.IsDir() {
		return errors.New("watch root is not a directory")
	}

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else if err := w.addTree(fsw, w.root); err != nil {
			fsw.Close()
			w.useFallback = true
		} else {
			if w.gitDir != "" {
				// Best effort: a missing repo only disables git signals.
				if err := fsw.Add(w.gitDir); err != nil {
					debug.Log("watcher: cannot watch git dir %s: %v", w.gitDir, err)
				}
			}
			w.fsWatcher = fsw
			go w.watchFsnotify()
		}
	}

	if w.useFallback {
		w.snapshot = w.scanTree()
		w.gitState = w.scanGit()
		go w.watchPolling()
	}

	w.started = true
	debug.Log("watcher started on %s (polling=%v, fs=%s)", w.root, w.useFallback, w.fsType)
	return nil
}

// Stop stops watching. The event channels are intentionally left open;
// closing them would race with in-flight notifications.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	for _, d := range w.debouncers {
		d.Cancel()
	}
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns the record change event channel. This is an alternative
// to the OnEvent callback.
func (w *Watcher) Changed() <-chan Event {
	return w.eventCh
}

// GitSignals returns the repository-metadata signal channel.
func (w *Watcher) GitSignals() <-chan GitSignal {
	return w.gitCh
}

// Root returns the watched plan root.
func (w *Watcher) Root() string {
	return w.root
}

// GitDir returns the git directory being watched, or "" when none was found.
func (w *Watcher) GitDir() string {
	return w.gitDir
}

// FilesystemType returns the best-effort filesystem classification for the
// watched root.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// isRecordFile reports whether a base name looks like a record file.
func isRecordFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".json":
		return true
	default:
		return false
	}
}

// isSkippedDir reports whether a directory should not be descended into.
func isSkippedDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor"
}

// addTree registers fsnotify watches for dir and every subdirectory.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isSkippedDir(d.Name()) {
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify() {
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	events := w.fsWatcher.Events
	errs := w.fsWatcher.Errors
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(event)

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	if w.gitDir != "" && filepath.Dir(event.Name) == w.gitDir {
		w.handleGitEvent(event)
		return
	}

	base := filepath.Base(event.Name)

	// New subdirectories must be watched to see records created inside them.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !isSkippedDir(base) {
				w.mu.RLock()
				fsw := w.fsWatcher
				w.mu.RUnlock()
				if fsw != nil {
					if err := w.addTree(fsw, event.Name); err != nil {
						w.onError(err)
					}
				}
			}
			return
		}
	}

	if !isRecordFile(base) {
		return
	}

	switch {
	case event.Op&fsnotify.Remove != 0:
		w.dropDebouncer(event.Name)
		w.notify(Event{Op: OpDeleted, Path: event.Name})

	case event.Op&fsnotify.Create != 0:
		w.debounce(event.Name, OpCreated)

	case event.Op&(fsnotify.Write|fsnotify.Rename) != 0:
		// Renames are how atomic saves land; treat them as changes to the
		// target path.
		w.debounce(event.Name, OpChanged)
	}
}

func (w *Watcher) handleGitEvent(event fsnotify.Event) {
	kind, ok := gitMetaFiles[filepath.Base(event.Name)]
	if !ok {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.notifyGit(GitSignal{Kind: kind})
}

// debounce schedules a per-path notification so rapid saves of one file
// deliver one event.
func (w *Watcher) debounce(path string, op Op) {
	w.mu.Lock()
	d, ok := w.debouncers[path]
	if !ok {
		d = NewDebouncer(w.debounceDuration)
		w.debouncers[path] = d
	}
	w.mu.Unlock()

	d.Trigger(func() {
		w.notify(Event{Op: op, Path: path})
	})
}

func (w *Watcher) dropDebouncer(path string) {
	w.mu.Lock()
	if d, ok := w.debouncers[path]; ok {
		d.Cancel()
		delete(w.debouncers, path)
	}
	w.mu.Unlock()
}

// scanTree stats every record file under the root.
func (w *Watcher) scanTree() map[string]fileState {
	states := make(map[string]fileState)
	filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && isSkippedDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !isRecordFile(d.Name()) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			states[path] = fileState{mtime: info.ModTime(), size: info.Size()}
		}
		return nil
	})
	return states
}

// scanGit stats the repository-metadata files.
func (w *Watcher) scanGit() map[string]fileState {
	states := make(map[string]fileState)
	if w.gitDir == "" {
		return states
	}
	for name := range gitMetaFiles {
		path := filepath.Join(w.gitDir, name)
		if info, err := os.Stat(path); err == nil {
			states[path] = fileState{mtime: info.ModTime(), size: info.Size()}
		}
	}
	return states
}

// watchPolling monitors using periodic tree scans.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	current := w.scanTree()

	w.mu.Lock()
	previous := w.snapshot
	w.snapshot = current
	w.mu.Unlock()

	for path, state := range current {
		prev, existed := previous[path]
		switch {
		case !existed:
			w.debounce(path, OpCreated)
		case state.mtime.After(prev.mtime) || state.size != prev.size:
			w.debounce(path, OpChanged)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			w.dropDebouncer(path)
			w.notify(Event{Op: OpDeleted, Path: path})
		}
	}

	gitCurrent := w.scanGit()
	w.mu.Lock()
	gitPrevious := w.gitState
	w.gitState = gitCurrent
	w.mu.Unlock()

	for path, state := range gitCurrent {
		prev, existed := gitPrevious[path]
		if !existed || state.mtime.After(prev.mtime) || state.size != prev.size {
			if kind, ok := gitMetaFiles[filepath.Base(path)]; ok {
				w.notifyGit(GitSignal{Kind: kind})
			}
		}
	}
}

// notify invokes the event callback and signals the event channel.
func (w *Watcher) notify(ev Event) {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	// Best-effort guard against callbacks after Stop; consumers treat
	// events as idempotent invalidation hints, so the race is harmless.
	if !started {
		return
	}

	w.onEvent(ev)

	select {
	case w.eventCh <- ev:
	default:
	}
}

func (w *Watcher) notifyGit(sig GitSignal) {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	w.onGitSignal(sig)

	select {
	case w.gitCh <- sig:
	default:
	}
}
