// Package hierarchy reconstructs the work-item forest from a flat,
// path-keyed item collection and computes per-node completion statistics.
package hierarchy

import (
	"fmt"
	"sort"

	"github.com/workviz/workviz/pkg/model"
)

// Node is one position in the hierarchy forest. A node exclusively owns its
// Children; Parent is a non-owning back-reference used for upward walks only.
// Forests are rebuilt wholesale on cache miss and treated as immutable by
// every consumer afterwards.
type Node struct {
	Item     *model.WorkItem
	Children []*Node
	Parent   *Node
	Depth    int
}

// Diagnostic records a non-fatal anomaly found while building, such as a
// story whose feature directory has no feature record. Diagnostics are
// reported, never raised as errors.
type Diagnostic struct {
	ItemID     string
	SourcePath string
	Message    string
}

// Result is the output of one build pass.
type Result struct {
	Roots       []*Node
	ByID        map[string]*Node
	Diagnostics []Diagnostic
}

// Build reconstructs the forest from a flat item collection. It is a pure
// function: same items in, same forest out, regardless of input order.
//
// The build is a fixed number of flat passes over ancestry-key maps rather
// than a recursive descent, so missing or out-of-order containers can never
// recurse or crash: an item whose container is absent becomes a root-level
// orphan with a diagnostic.
func Build(items []model.WorkItem) Result {
	res := Result{ByID: make(map[string]*Node, len(items))}
	if len(items) == 0 {
		return res
	}

	// Pass 1: wrap every item in a node and register container lookup maps
	// keyed by ancestry string.
	nodes := make([]*Node, 0, len(items))
	ancestries := make([]Ancestry, 0, len(items))
	projectByKey := make(map[string]*Node)
	epicByKey := make(map[string]*Node)
	featureByKey := make(map[string]*Node)

	for i := range items {
		item := &items[i]
		node := &Node{Item: item}
		nodes = append(nodes, node)
		res.ByID[item.ID] = node

		a := ParseAncestry(item.SourcePath)
		ancestries = append(ancestries, a)

		switch item.Type {
		case model.TypeProject:
			projectByKey[a.ProjectKey()] = node
		case model.TypeEpic:
			if key := a.EpicKey(); key != "" {
				epicByKey[key] = node
			}
		case model.TypeFeature:
			if key := a.FeatureKey(); key != "" {
				featureByKey[key] = node
			}
		}
	}

	// A single project record at the plan root adopts every epic that has no
	// project marker of its own.
	rootProject := projectByKey[""]
	if len(projectByKey) > 1 {
		rootProject = nil
	}

	// Pass 2: attach each node to its container, or make it a root.
	for i, node := range nodes {
		a := ancestries[i]
		switch node.Item.Type {
		case model.TypeProject:
			res.Roots = append(res.Roots, node)

		case model.TypeEpic:
			parent := projectByKey[a.ProjectKey()]
			if parent == nil && a.ProjectKey() == "" {
				parent = rootProject
			}
			if parent == nil && a.ProjectKey() != "" {
				res.Diagnostics = append(res.Diagnostics, missingContainer(node, "project", a.ProjectKey()))
			}
			attachOrRoot(&res, node, parent)

		case model.TypeFeature:
			parent := epicByKey[a.EpicKey()]
			if parent == nil && a.EpicKey() != "" {
				res.Diagnostics = append(res.Diagnostics, missingContainer(node, "epic", a.EpicKey()))
			}
			attachOrRoot(&res, node, parent)

		case model.TypeStory, model.TypeBug:
			parent := featureByKey[a.FeatureKey()]
			if parent == nil && a.FeatureKey() != "" {
				res.Diagnostics = append(res.Diagnostics, missingContainer(node, "feature", a.FeatureKey()))
			}
			attachOrRoot(&res, node, parent)

		case model.TypeSpec, model.TypePhase:
			// Attachments hang off the innermost container present in the path.
			parent, want, key := innermostContainer(a, projectByKey, epicByKey, featureByKey)
			if parent == nil && key != "" {
				res.Diagnostics = append(res.Diagnostics, missingContainer(node, want, key))
			}
			attachOrRoot(&res, node, parent)

		default:
			attachOrRoot(&res, node, nil)
		}
	}

	// Pass 3: depths and sibling order, recursively from the roots.
	sortSiblings(res.Roots)
	for _, root := range res.Roots {
		finalize(root, 0)
	}
	return res
}

func attachOrRoot(res *Result, node, parent *Node) {
	if parent == nil || parent == node {
		res.Roots = append(res.Roots, node)
		return
	}
	node.Parent = parent
	parent.Children = append(parent.Children, node)
}

func innermostContainer(a Ancestry, projects, epics, features map[string]*Node) (node *Node, level, key string) {
	if k := a.FeatureKey(); k != "" {
		return features[k], "feature", k
	}
	if k := a.EpicKey(); k != "" {
		return epics[k], "epic", k
	}
	if k := a.ProjectKey(); k != "" {
		return projects[k], "project", k
	}
	return nil, "", ""
}

func missingContainer(node *Node, level, key string) Diagnostic {
	return Diagnostic{
		ItemID:     node.Item.ID,
		SourcePath: node.Item.SourcePath,
		Message:    fmt.Sprintf("%s %s references missing %s container %q; treated as root-level orphan", node.Item.Type, node.Item.ID, level, key),
	}
}

// finalize assigns depths and sorts children at every level.
func finalize(node *Node, depth int) {
	node.Depth = depth
	sortSiblings(node.Children)
	for _, child := range node.Children {
		finalize(child, depth+1)
	}
}

// sortSiblings orders nodes by type rank, then numeric ID ascending, then ID
// string as a deterministic tiebreak.
func sortSiblings(nodes []*Node) {
	if len(nodes) <= 1 {
		return
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i].Item, nodes[j].Item
		if ra, rb := model.TypeRank(a.Type), model.TypeRank(b.Type); ra != rb {
			return ra < rb
		}
		if na, nb := model.NumericID(a.ID), model.NumericID(b.ID); na != nb {
			return na < nb
		}
		return a.ID < b.ID
	})
}

// Walk visits node and its descendants in display order.
func Walk(node *Node, visit func(*Node)) {
	if node == nil {
		return
	}
	visit(node)
	for _, child := range node.Children {
		Walk(child, visit)
	}
}

// WalkAll visits every node of a forest in display order.
func WalkAll(roots []*Node, visit func(*Node)) {
	for _, root := range roots {
		Walk(root, visit)
	}
}
