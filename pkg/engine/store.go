// Package engine is the reactive aggregation core: a multi-tier cache over
// the flat item collection, the derived hierarchy forests, and per-node
// progress, plus the two timer-driven state machines that decide when a
// change on disk becomes a redraw.
package engine

import (
	"sync"

	"github.com/workviz/workviz/pkg/debug"
	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

// LoadFunc performs the full scan + parse of the plan directory. It is the
// boundary to the metadata-parsing collaborator; malformed records are
// already excluded by the time items come back.
type LoadFunc func() ([]model.WorkItem, error)

// Store is the multi-tier cache. Three tiers, one invalidation protocol:
//
//	itemsByPath      path → WorkItem, populated by one full scan
//	hierarchyByGroup grouping key → built forest
//	progressByNode   grouping key + item ID → progress
//
// All tiers are owned exclusively by the Store and mutated only through its
// methods. Forests handed out are immutable to callers.
type Store struct {
	mu   sync.Mutex
	load LoadFunc

	itemsByPath map[string]model.WorkItem
	itemOrder   []string // source paths in scan order, for a stable GetItems
	itemsFresh  bool

	hierarchyByGroup map[hierarchy.GroupKey]*hierarchy.Result
	progressByNode   map[progressKey]*model.ProgressInfo
}

type progressKey struct {
	group hierarchy.GroupKey
	id    string
}

// NewStore creates a Store that fills its item tier via load.
func NewStore(load LoadFunc) *Store {
	s := &Store{load: load}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.itemsByPath = make(map[string]model.WorkItem)
	s.itemOrder = nil
	s.itemsFresh = false
	s.hierarchyByGroup = make(map[hierarchy.GroupKey]*hierarchy.Result)
	s.progressByNode = make(map[progressKey]*model.ProgressInfo)
}

// GetItems returns the flat item collection. On miss it performs the full
// scan and populates the item tier; on hit it returns cached values without
// touching the filesystem.
func (s *Store) GetItems() ([]model.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getItemsLocked()
}

func (s *Store) getItemsLocked() ([]model.WorkItem, error) {
	if !s.itemsFresh {
		items, err := s.load()
		if err != nil {
			return nil, err
		}
		s.itemsByPath = make(map[string]model.WorkItem, len(items))
		s.itemOrder = s.itemOrder[:0]
		for _, item := range items {
			if _, dup := s.itemsByPath[item.SourcePath]; dup {
				debug.Log("duplicate source path %q, keeping first record", item.SourcePath)
				continue
			}
			s.itemsByPath[item.SourcePath] = item
			s.itemOrder = append(s.itemOrder, item.SourcePath)
		}
		s.itemsFresh = true
	}

	out := make([]model.WorkItem, 0, len(s.itemOrder))
	for _, path := range s.itemOrder {
		out = append(out, s.itemsByPath[path])
	}
	return out, nil
}

// GetHierarchy returns the forest for a grouping key, building it on miss
// from the group-filtered item collection.
func (s *Store) GetHierarchy(key hierarchy.GroupKey) (*hierarchy.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.hierarchyByGroup[key]; ok {
		return res, nil
	}

	items, err := s.getItemsLocked()
	if err != nil {
		return nil, err
	}
	res := hierarchy.Build(key.Filter(items))
	for _, d := range res.Diagnostics {
		debug.Log("hierarchy %s: %s", key, d.Message)
	}
	s.hierarchyByGroup[key] = &res
	return &res, nil
}

// GetRoots returns the ordered root nodes for a grouping key.
func (s *Store) GetRoots(key hierarchy.GroupKey) ([]*hierarchy.Node, error) {
	res, err := s.GetHierarchy(key)
	if err != nil {
		return nil, err
	}
	return res.Roots, nil
}

// GetChildren returns a node's ordered children. Trivial accessor, present
// so render collaborators never reach into Node internals on their own.
func (s *Store) GetChildren(node *hierarchy.Node) []*hierarchy.Node {
	if node == nil {
		return nil
	}
	return node.Children
}

// GetProgress returns the completion statistic for a node within the given
// grouping, caching per (group, item). Returns nil for leaf types.
func (s *Store) GetProgress(key hierarchy.GroupKey, node *hierarchy.Node) *model.ProgressInfo {
	if node == nil || node.Item == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pk := progressKey{group: key, id: node.Item.ID}
	if info, ok := s.progressByNode[pk]; ok {
		return info
	}
	info := hierarchy.ProgressOf(node)
	if info == nil {
		return nil
	}
	s.progressByNode[pk] = info
	return info
}

// Invalidate evicts everything a change to path can influence: the item
// entry itself, every hierarchy forest (a changed item can move between
// groups, so group-scoped forests cannot be selectively preserved), and the
// progress entries of the item and of every ancestor container implied by
// the path.
func (s *Store) Invalidate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, hadItem := s.itemsByPath[path]
	delete(s.itemsByPath, path)
	s.itemsFresh = false

	s.hierarchyByGroup = make(map[hierarchy.GroupKey]*hierarchy.Result)

	if hadItem {
		s.evictProgressLocked(changed.ID)
	}
	for _, id := range s.ancestorIDsLocked(path) {
		s.evictProgressLocked(id)
	}
}

// InvalidateAll clears all three tiers unconditionally.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// evictProgressLocked drops the progress entries for one item across every
// grouping.
func (s *Store) evictProgressLocked(itemID string) {
	for pk := range s.progressByNode {
		if pk.id == itemID {
			delete(s.progressByNode, pk)
		}
	}
}

// ancestorIDsLocked walks the ancestor chain implied by a path and resolves
// each ancestry key to the ID of its container record, using whatever items
// are still cached. Unresolvable levels are skipped; a leaf status change
// must evict every ancestor's progress up to the root.
func (s *Store) ancestorIDsLocked(path string) []string {
	keys := hierarchy.ParseAncestry(path).ContainerKeys()
	if len(keys) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	var ids []string
	for _, item := range s.itemsByPath {
		if !item.Type.IsContainer() {
			continue
		}
		a := hierarchy.ParseAncestry(item.SourcePath)
		var key string
		switch item.Type {
		case model.TypeProject:
			key = a.ProjectKey()
			if key == "" {
				// A root project adopts unscoped epics, so any change
				// below it can shift its progress.
				ids = append(ids, item.ID)
				continue
			}
		case model.TypeEpic:
			key = a.EpicKey()
		case model.TypeFeature:
			key = a.FeatureKey()
		}
		if key != "" && wanted[key] {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
