package testutil

import (
	"testing"

	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

// AssertItemCount verifies the expected number of items.
func AssertItemCount(t *testing.T, items []model.WorkItem, expected int) {
	t.Helper()
	if len(items) != expected {
		t.Errorf("expected %d items, got %d", expected, len(items))
	}
}

// AssertNoDuplicateIDs verifies all item IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, items []model.WorkItem) {
	t.Helper()
	seen := make(map[string]bool)
	for _, item := range items {
		if seen[item.ID] {
			t.Errorf("duplicate item ID: %s", item.ID)
		}
		seen[item.ID] = true
	}
}

// AssertAllValid verifies all items pass validation.
func AssertAllValid(t *testing.T, items []model.WorkItem) {
	t.Helper()
	for i := range items {
		if err := items[i].Validate(); err != nil {
			t.Errorf("item %d (%s) invalid: %v", i, items[i].ID, err)
		}
	}
}

// AssertParentChild verifies that childID sits directly under parentID in the
// built forest.
func AssertParentChild(t *testing.T, roots []*hierarchy.Node, parentID, childID string) {
	t.Helper()
	found := false
	hierarchy.WalkAll(roots, func(n *hierarchy.Node) {
		if n.Item.ID != childID {
			return
		}
		found = true
		if n.Parent == nil {
			t.Errorf("item %s is a root, expected parent %s", childID, parentID)
			return
		}
		if n.Parent.Item.ID != parentID {
			t.Errorf("item %s has parent %s, expected %s", childID, n.Parent.Item.ID, parentID)
		}
	})
	if !found {
		t.Errorf("item %s not found in forest", childID)
	}
}
