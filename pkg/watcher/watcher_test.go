package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32

	// Trigger rapidly 10 times
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	// Wait for debounce to complete
	time.Sleep(100 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool

	d.Trigger(func() {
		called.Store(true)
	})

	// Cancel before debounce completes
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func writeRecord(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestWatcher(t *testing.T, root string, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithGitDir("")}, opts...)
	w, err := NewWatcher(root, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWatcher_DetectsNestedChange(t *testing.T) {
	root := t.TempDir()
	record := filepath.Join(root, "projects", "P1", "epics", "E01", "epic.md")
	writeRecord(t, record, "initial")

	var (
		mu     sync.Mutex
		events []Event
	)

	w := newTestWatcher(t, root,
		WithDebounceDuration(50*time.Millisecond),
		WithOnEvent(func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Give watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	writeRecord(t, record, "modified content")

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 {
		t.Fatal("expected a change event")
	}
	if events[0].Path != record {
		t.Errorf("event path = %q, want %q", events[0].Path, record)
	}
}

func TestWatcher_SeesRecordsInNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, filepath.Join(root, "projects", "P1", "project.md"), "initial")

	w := newTestWatcher(t, root,
		WithDebounceDuration(20*time.Millisecond),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify unavailable; directory-add path not exercised")
	}

	time.Sleep(100 * time.Millisecond)

	// Create a brand-new directory, give the watcher a beat to register it,
	// then drop a record inside.
	newDir := filepath.Join(root, "projects", "P1", "epics", "E02")
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	writeRecord(t, filepath.Join(newDir, "epic.md"), "new epic")

	select {
	case ev := <-w.Changed():
		if filepath.Base(ev.Path) != "epic.md" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for event from new subdirectory")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	root := t.TempDir()
	record := filepath.Join(root, "story-1.md")
	writeRecord(t, record, "initial")

	var (
		mu      sync.Mutex
		changed bool
	)

	w := newTestWatcher(t, root,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
		WithOnEvent(func(Event) {
			mu.Lock()
			changed = true
			mu.Unlock()
		}),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Error("expected watcher to be in polling mode")
	}

	time.Sleep(50 * time.Millisecond)

	writeRecord(t, record, "modified via polling")

	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !changed {
		t.Error("expected change to be detected via polling")
	}
}

func TestWatcher_PollingDetectsDeletion(t *testing.T) {
	root := t.TempDir()
	record := filepath.Join(root, "story-1.md")
	writeRecord(t, record, "initial")

	w := newTestWatcher(t, root,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(record); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Changed():
		if ev.Op != OpDeleted || ev.Path != record {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for deletion event")
	}
}

func TestWatcher_ChangedChannel(t *testing.T) {
	root := t.TempDir()
	record := filepath.Join(root, "story-1.md")
	writeRecord(t, record, "initial")

	w := newTestWatcher(t, root,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(record, []byte("new content"), 0o644)
	}()

	select {
	case <-w.Changed():
		// Success
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for change notification")
	}
}

func TestWatcher_GitSignalViaPolling(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, filepath.Join(root, "story-1.md"), "initial")
	gitDir := filepath.Join(root, ".git")
	writeRecord(t, filepath.Join(gitDir, "HEAD"), "ref: refs/heads/main\n")

	w, err := NewWatcher(root,
		WithGitDir(gitDir),
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Simulate a checkout: HEAD now points somewhere else.
	writeRecord(t, filepath.Join(gitDir, "HEAD"), "ref: refs/heads/feature/login\n")

	select {
	case sig := <-w.GitSignals():
		if sig.Kind != GitRefChanged {
			t.Errorf("expected GitRefChanged, got %v", sig.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for git signal")
	}
}

func TestWatcher_EnvForcePolling(t *testing.T) {
	t.Setenv("WV_FORCE_POLLING", "1")

	root := t.TempDir()
	writeRecord(t, filepath.Join(root, "story-1.md"), "initial")

	w := newTestWatcher(t, root,
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to be in polling mode when WV_FORCE_POLLING is set")
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv("WV_FORCE_POLL", "true")

	root := t.TempDir()
	writeRecord(t, filepath.Join(root, "story-1.md"), "initial")

	w := newTestWatcher(t, root,
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to be in polling mode when WV_FORCE_POLL is set")
	}
}

func TestWatcher_RemoteFilesystem_UsesPolling(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, filepath.Join(root, "story-1.md"), "initial")

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w := newTestWatcher(t, root,
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to use polling on remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Fatalf("expected filesystem type %v, got %v", FSTypeNFS, got)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, filepath.Join(root, "story-1.md"), "initial")

	w := newTestWatcher(t, root)

	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if !w.IsStarted() {
		t.Error("watcher should be started after Start()")
	}

	// Double start should error
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()

	if w.IsStarted() {
		t.Error("watcher should not be started after Stop()")
	}

	// Double stop should be safe
	w.Stop()
}

func TestWatcher_RootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "story-1.md")
	writeRecord(t, file, "initial")

	w := newTestWatcher(t, file)
	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("expected an error when watching a plain file")
	}
}

func TestWatcher_Root(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)

	absRoot, _ := filepath.Abs(root)
	if w.Root() != absRoot {
		t.Errorf("expected root %s, got %s", absRoot, w.Root())
	}
}

func TestWatcher_PollInterval(t *testing.T) {
	root := t.TempDir()

	customInterval := 500 * time.Millisecond
	w := newTestWatcher(t, root, WithPollInterval(customInterval))

	if got := w.PollInterval(); got != customInterval {
		t.Errorf("expected poll interval %v, got %v", customInterval, got)
	}
}

func TestWatcher_FindsGitDir(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	plan := filepath.Join(root, ".workplan")
	if err := os.MkdirAll(plan, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(plan)
	if err != nil {
		t.Fatal(err)
	}
	if w.GitDir() != gitDir {
		t.Errorf("expected git dir %s, got %s", gitDir, w.GitDir())
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType   FilesystemType
		expected string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"}, // invalid type
	}

	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.expected {
			t.Errorf("FilesystemType(%d).String() = %q, expected %q", tc.fsType, got, tc.expected)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL"); got != tc.expected {
				t.Errorf("envBool(%q) = %v, expected %v", tc.value, got, tc.expected)
			}
		})
	}
}

func TestDetectFilesystemType_EmptyPath(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, expected FSTypeUnknown", got)
	}
}

func TestDetectFilesystemType_NonExistentPath(t *testing.T) {
	// Should fall back to parent directory detection
	root := t.TempDir()
	nonExistent := filepath.Join(root, "does_not_exist", "x.md")
	// Should not panic, should return some valid type
	_ = DetectFilesystemType(nonExistent)
}
