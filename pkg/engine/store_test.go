package engine

import (
	"sync/atomic"
	"testing"

	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

func planItems() []model.WorkItem {
	return []model.WorkItem{
		{ID: "epic-1", Title: "Auth", Type: model.TypeEpic,
			Status: model.StatusInProgress, SourcePath: "epics/E1/epic.md"},
		{ID: "feature-1", Title: "Login", Type: model.TypeFeature,
			Status: model.StatusInProgress, SourcePath: "epics/E1/features/F1/feature.md"},
		{ID: "story-1", Title: "Form", Type: model.TypeStory,
			Status: model.StatusCompleted, SourcePath: "epics/E1/features/F1/stories/story-1.md"},
		{ID: "story-2", Title: "Redirect", Type: model.TypeStory,
			Status: model.StatusReady, SourcePath: "epics/E1/features/F1/stories/story-2.md"},
	}
}

// countingLoader returns a LoadFunc serving the given snapshot and a counter
// of how many scans were performed.
func countingLoader(items func() []model.WorkItem) (LoadFunc, *atomic.Int32) {
	var scans atomic.Int32
	return func() ([]model.WorkItem, error) {
		scans.Add(1)
		return items(), nil
	}, &scans
}

func TestStore_GetItemsCachesScan(t *testing.T) {
	load, scans := countingLoader(planItems)
	s := NewStore(load)

	first, err := s.GetItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 4 {
		t.Fatalf("expected 4 items, got %d", len(first))
	}
	if _, err := s.GetItems(); err != nil {
		t.Fatal(err)
	}
	if got := scans.Load(); got != 1 {
		t.Errorf("expected exactly 1 scan, got %d", got)
	}
}

func TestStore_HierarchyIdempotent(t *testing.T) {
	load, scans := countingLoader(planItems)
	s := NewStore(load)

	a, err := s.GetHierarchy(hierarchy.GroupAll)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GetHierarchy(hierarchy.GroupAll)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("cache hit should return the identical forest, not a rebuild")
	}
	if got := scans.Load(); got != 1 {
		t.Errorf("hidden recomputation: %d scans", got)
	}
}

func TestStore_GroupsCachedIndependently(t *testing.T) {
	load, _ := countingLoader(planItems)
	s := NewStore(load)

	all, err := s.GetHierarchy(hierarchy.GroupAll)
	if err != nil {
		t.Fatal(err)
	}
	ready, err := s.GetHierarchy(hierarchy.StatusGroup(model.StatusReady))
	if err != nil {
		t.Fatal(err)
	}
	if all == ready {
		t.Fatal("distinct groups must cache distinct forests")
	}

	// The ready bucket keeps containers but only the matching story.
	feature := ready.ByID["feature-1"]
	if feature == nil {
		t.Fatal("bucket lost its feature container")
	}
	if len(feature.Children) != 1 || feature.Children[0].Item.ID != "story-2" {
		t.Errorf("ready bucket children wrong: %+v", feature.Children)
	}
}

func TestStore_InvalidateEvictsAncestorProgress(t *testing.T) {
	current := planItems()
	load, scans := countingLoader(func() []model.WorkItem { return current })
	s := NewStore(load)

	res, err := s.GetHierarchy(hierarchy.GroupAll)
	if err != nil {
		t.Fatal(err)
	}
	feature := res.ByID["feature-1"]
	epic := res.ByID["epic-1"]

	p := s.GetProgress(hierarchy.GroupAll, feature)
	if p == nil || p.Completed != 1 || p.Total != 2 {
		t.Fatalf("feature progress = %+v, want 1/2", p)
	}
	if ep := s.GetProgress(hierarchy.GroupAll, epic); ep == nil || ep.Total != 1 {
		t.Fatalf("epic progress = %+v, want 0/1", ep)
	}

	// story-2 completes on disk; its path invalidation must reach every
	// ancestor's progress entry.
	current = planItems()
	current[3].Status = model.StatusCompleted
	s.Invalidate("epics/E1/features/F1/stories/story-2.md")

	res2, err := s.GetHierarchy(hierarchy.GroupAll)
	if err != nil {
		t.Fatal(err)
	}
	if res2 == res {
		t.Fatal("invalidation must drop the cached forest")
	}
	p2 := s.GetProgress(hierarchy.GroupAll, res2.ByID["feature-1"])
	if p2 == nil || p2.Completed != 2 || p2.Percentage != 100 {
		t.Errorf("stale progress after invalidation: %+v", p2)
	}
	if scans.Load() != 2 {
		t.Errorf("expected exactly 2 scans, got %d", scans.Load())
	}
}

func TestStore_InvalidateUnknownPathSafe(t *testing.T) {
	load, _ := countingLoader(planItems)
	s := NewStore(load)
	if _, err := s.GetItems(); err != nil {
		t.Fatal(err)
	}

	// Never seen before and outside any container: still clears the forests.
	s.Invalidate("notes/todo.md")
	if _, err := s.GetItems(); err != nil {
		t.Fatal(err)
	}
}

func TestStore_InvalidateAll(t *testing.T) {
	load, scans := countingLoader(planItems)
	s := NewStore(load)

	if _, err := s.GetHierarchy(hierarchy.GroupAll); err != nil {
		t.Fatal(err)
	}
	s.InvalidateAll()
	if _, err := s.GetHierarchy(hierarchy.GroupAll); err != nil {
		t.Fatal(err)
	}
	if got := scans.Load(); got != 2 {
		t.Errorf("expected a fresh scan after InvalidateAll, got %d scans", got)
	}
}

func TestStore_ProgressCachedPerGroup(t *testing.T) {
	load, _ := countingLoader(planItems)
	s := NewStore(load)

	all, _ := s.GetHierarchy(hierarchy.GroupAll)
	ready, _ := s.GetHierarchy(hierarchy.StatusGroup(model.StatusReady))

	pAll := s.GetProgress(hierarchy.GroupAll, all.ByID["feature-1"])
	pReady := s.GetProgress(hierarchy.StatusGroup(model.StatusReady), ready.ByID["feature-1"])

	if pAll.Total != 2 {
		t.Errorf("full view total = %d, want 2", pAll.Total)
	}
	if pReady.Total != 1 {
		t.Errorf("ready bucket total = %d, want 1", pReady.Total)
	}
}

func TestStore_SkipsDuplicateSourcePaths(t *testing.T) {
	items := planItems()
	items = append(items, model.WorkItem{
		ID: "story-9", Type: model.TypeStory, Status: model.StatusReady,
		SourcePath: "epics/E1/features/F1/stories/story-2.md",
	})
	load, _ := countingLoader(func() []model.WorkItem { return items })
	s := NewStore(load)

	got, err := s.GetItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("duplicate path should keep first record only, got %d items", len(got))
	}
}
