package hierarchy

import "github.com/workviz/workviz/pkg/model"

// countableChild maps a container type to the child type(s) counted toward
// its progress: a feature counts its stories and bugs, an epic its features,
// a project its epics. spec/phase attachments never count.
func countableChild(container model.ItemType, child model.ItemType) bool {
	switch container {
	case model.TypeProject:
		return child == model.TypeEpic
	case model.TypeEpic:
		return child == model.TypeFeature
	case model.TypeFeature:
		return child == model.TypeStory || child == model.TypeBug
	default:
		return false
	}
}

// ProgressOf computes the completion statistic for a node over its direct
// children. Aggregation is deliberately shallow: only the immediate
// countable children's statuses are inspected, keeping recomputation
// O(children) instead of O(subtree). Returns nil for leaf types, which have
// no children by definition.
func ProgressOf(node *Node) *model.ProgressInfo {
	if node == nil || node.Item == nil || !node.Item.Type.IsContainer() {
		return nil
	}

	completed, total := 0, 0
	for _, child := range node.Children {
		if child.Item == nil || !countableChild(node.Item.Type, child.Item.Type) {
			continue
		}
		total++
		if child.Item.Status == model.StatusCompleted {
			completed++
		}
	}

	info := model.NewProgressInfo(completed, total)
	return &info
}
