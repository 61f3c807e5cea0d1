package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/workviz/workviz/pkg/model"
)

func TestEngine_ChangeBurstCoalescesToOneRefresh(t *testing.T) {
	var refreshes atomic.Int32
	e := New(nil, Options{
		RefreshDelay: 30 * time.Millisecond,
		OnRefresh:    func() { refreshes.Add(1) },
	})
	defer e.Close()

	for i := 0; i < 5; i++ {
		e.HandleChange(".workplan/projects/P1/project.md")
	}
	time.Sleep(120 * time.Millisecond)
	if got := refreshes.Load(); got != 1 {
		t.Errorf("burst of 5 changes should yield 1 refresh, got %d", got)
	}

	select {
	case <-e.Refresh():
	default:
		t.Error("refresh channel should carry a pending notification")
	}
}

func TestEngine_GitOperationSuppressesRefreshes(t *testing.T) {
	var refreshes atomic.Int32
	var scans atomic.Int32
	items := []model.WorkItem{
		{ID: "epic-1", Type: model.TypeEpic, Status: model.StatusInProgress,
			SourcePath: ".workplan/projects/P1/epics/E01/epic.md"},
	}
	e := New(func() ([]model.WorkItem, error) {
		scans.Add(1)
		return items, nil
	}, Options{
		RefreshDelay: 30 * time.Millisecond,
		SettleDelay:  MinSettleDelay,
		OnRefresh:    func() { refreshes.Add(1) },
	})
	defer e.Close()

	e.HandleGitSignal(SignalRefChanged)
	if !e.Detector().InProgress() {
		t.Fatal("git signal should start an operation")
	}

	// A checkout rewrites many records; none of them may schedule a redraw
	// while the operation is being absorbed.
	for i := 0; i < 10; i++ {
		e.HandleChange(items[0].SourcePath)
	}
	time.Sleep(60 * time.Millisecond)
	if refreshes.Load() != 0 {
		t.Fatal("refreshes fired while a git operation was in progress")
	}
	if e.Coordinator().Pending() {
		t.Error("no refresh should be pending during the operation")
	}

	// After the settle timer fires: one full invalidation, one refresh.
	time.Sleep(MinSettleDelay + 60*time.Millisecond)
	if got := refreshes.Load(); got != 1 {
		t.Errorf("expected exactly one refresh after settling, got %d", got)
	}
	if e.Detector().InProgress() {
		t.Error("operation should have settled")
	}

	scansBefore := scans.Load()
	if _, err := e.GetItems(); err != nil {
		t.Fatal(err)
	}
	if scans.Load() != scansBefore+1 {
		t.Error("settling should have invalidated the item cache")
	}
}

func TestEngine_ZeroDelayRefreshesImmediately(t *testing.T) {
	var refreshes atomic.Int32
	e := New(nil, Options{
		RefreshDelay: 0,
		OnRefresh:    func() { refreshes.Add(1) },
	})
	defer e.Close()

	e.HandleChange("a.md")
	e.HandleChange("b.md")
	if got := refreshes.Load(); got != 2 {
		t.Errorf("zero delay should refresh synchronously per change, got %d", got)
	}
}

func TestEngine_NegativeDelaySelectsDefault(t *testing.T) {
	e := New(nil, Options{RefreshDelay: -1})
	defer e.Close()
	if got := e.Coordinator().Delay(); got != DefaultRefreshDelay {
		t.Errorf("negative delay should select default %v, got %v", DefaultRefreshDelay, got)
	}
}

func TestEngine_DisabledDetectorIgnoresSignals(t *testing.T) {
	e := New(nil, Options{
		RefreshDelay:        0,
		DisableGitDetection: true,
	})
	defer e.Close()

	e.HandleGitSignal(SignalIndexChanged)
	if e.Detector().InProgress() {
		t.Error("disabled detector must not start an operation")
	}
}

func TestEngine_RefreshNowBypassesDebounce(t *testing.T) {
	var refreshes atomic.Int32
	var scans atomic.Int32
	e := New(func() ([]model.WorkItem, error) {
		scans.Add(1)
		return nil, nil
	}, Options{
		RefreshDelay: time.Second,
		OnRefresh:    func() { refreshes.Add(1) },
	})
	defer e.Close()

	if _, err := e.GetItems(); err != nil {
		t.Fatal(err)
	}
	e.RefreshNow()
	if got := refreshes.Load(); got != 1 {
		t.Errorf("RefreshNow should fire synchronously, got %d refreshes", got)
	}
	if _, err := e.GetItems(); err != nil {
		t.Fatal(err)
	}
	if got := scans.Load(); got != 2 {
		t.Errorf("RefreshNow should drop all caches, got %d scans", got)
	}
}
