package hierarchy

import (
	"strings"

	"github.com/workviz/workviz/pkg/model"
)

// GroupKey names one independently cached partition of the forest. The key
// is opaque at the cache boundary; this package owns its structure.
//
//	"all"            whole tree, archived items hidden (default view)
//	"all+archived"   whole tree including archived items
//	"status:<s>"     items in status bucket <s>, containers kept for shape
type GroupKey string

const (
	GroupAll         GroupKey = "all"
	GroupAllArchived GroupKey = "all+archived"
)

// StatusGroup returns the grouping key for a status bucket.
func StatusGroup(s model.Status) GroupKey {
	return GroupKey("status:" + string(s))
}

// statusPrefix is the key prefix for status buckets.
const statusPrefix = "status:"

// Filter reduces the flat item collection to the members of this group.
// Containers (project/epic/feature) are always retained in status buckets so
// the filtered forest keeps its shape; without them every matching leaf
// would surface as an orphan root.
func (k GroupKey) Filter(items []model.WorkItem) []model.WorkItem {
	switch {
	case k == GroupAllArchived:
		return items

	case strings.HasPrefix(string(k), statusPrefix):
		want := model.Status(strings.TrimPrefix(string(k), statusPrefix))
		out := make([]model.WorkItem, 0, len(items))
		for _, item := range items {
			if item.Status == want || item.Type.IsContainer() {
				out = append(out, item)
			}
		}
		return out

	default: // GroupAll and unrecognized keys fall back to the default view
		out := make([]model.WorkItem, 0, len(items))
		for _, item := range items {
			if item.Status != model.StatusArchived {
				out = append(out, item)
			}
		}
		return out
	}
}

// Status returns the status bucket a key selects, if any.
func (k GroupKey) Status() (model.Status, bool) {
	if strings.HasPrefix(string(k), statusPrefix) {
		return model.Status(strings.TrimPrefix(string(k), statusPrefix)), true
	}
	return "", false
}
