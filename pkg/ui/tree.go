package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"

	"github.com/workviz/workviz/pkg/debug"
	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

// defaultExpandDepth controls which nodes start expanded: projects and epics
// are open, features start folded.
const defaultExpandDepth = 2

// TreeState is the persisted expand/collapse state of the tree view.
// Only explicit user changes are stored; nodes not in the map use the
// depth-based default. A corrupted or missing file silently falls back to
// defaults.
type TreeState struct {
	Version  int             `json:"version"`
	Expanded map[string]bool `json:"expanded"`
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

// treeStateFileName is the filename for persisted tree state
const treeStateFileName = "tree-state.json"

// ProgressFunc resolves the progress of a container node under the current
// grouping key.
type ProgressFunc func(*hierarchy.Node) *model.ProgressInfo

// TreeModel manages the hierarchical tree pane: which nodes are visible,
// which one is selected, and how rows are drawn.
type TreeModel struct {
	roots    []*hierarchy.Node
	flat     []*hierarchy.Node
	byID     map[string]*hierarchy.Node
	expanded map[string]bool
	cursor   int
	offset   int
	width    int
	height   int
	progress ProgressFunc
	stateDir string
}

// NewTreeModel creates an empty tree model. progress may be nil, in which
// case no progress column is drawn.
func NewTreeModel(progress ProgressFunc) TreeModel {
	return TreeModel{
		byID:     make(map[string]*hierarchy.Node),
		expanded: make(map[string]bool),
		progress: progress,
	}
}

// SetStateDir sets the directory where expand/collapse state is persisted.
// Empty disables persistence.
func (t *TreeModel) SetStateDir(dir string) {
	t.stateDir = dir
	t.loadState()
}

// SetSize updates the pane dimensions.
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.scrollIntoView()
}

// SetNodes replaces the forest, keeping the current selection when the
// selected item still exists.
func (t *TreeModel) SetNodes(roots []*hierarchy.Node) {
	var selectedID string
	if n := t.Selected(); n != nil {
		selectedID = n.Item.ID
	}

	t.roots = roots
	t.byID = make(map[string]*hierarchy.Node)
	hierarchy.WalkAll(roots, func(n *hierarchy.Node) {
		t.byID[n.Item.ID] = n
	})
	t.rebuildFlat()

	if selectedID != "" {
		for i, n := range t.flat {
			if n.Item.ID == selectedID {
				t.cursor = i
				break
			}
		}
	}
	t.clampCursor()
	t.scrollIntoView()
}

// Len returns the number of visible rows.
func (t *TreeModel) Len() int { return len(t.flat) }

// Selected returns the node under the cursor, or nil for an empty tree.
func (t *TreeModel) Selected() *hierarchy.Node {
	if t.cursor < 0 || t.cursor >= len(t.flat) {
		return nil
	}
	return t.flat[t.cursor]
}

// IsExpanded reports the effective expand state of a node.
func (t *TreeModel) IsExpanded(n *hierarchy.Node) bool {
	if state, ok := t.expanded[n.Item.ID]; ok {
		return state
	}
	return n.Depth < defaultExpandDepth
}

// MoveUp moves the cursor one row up.
func (t *TreeModel) MoveUp() {
	t.cursor--
	t.clampCursor()
	t.scrollIntoView()
}

// MoveDown moves the cursor one row down.
func (t *TreeModel) MoveDown() {
	t.cursor++
	t.clampCursor()
	t.scrollIntoView()
}

// MoveTop moves the cursor to the first row.
func (t *TreeModel) MoveTop() {
	t.cursor = 0
	t.scrollIntoView()
}

// MoveBottom moves the cursor to the last row.
func (t *TreeModel) MoveBottom() {
	t.cursor = len(t.flat) - 1
	t.clampCursor()
	t.scrollIntoView()
}

// PageDown moves the cursor a page down.
func (t *TreeModel) PageDown() {
	t.cursor += max(t.height-1, 1)
	t.clampCursor()
	t.scrollIntoView()
}

// PageUp moves the cursor a page up.
func (t *TreeModel) PageUp() {
	t.cursor -= max(t.height-1, 1)
	t.clampCursor()
	t.scrollIntoView()
}

// Expand opens the selected node.
func (t *TreeModel) Expand() {
	n := t.Selected()
	if n == nil || len(n.Children) == 0 {
		return
	}
	t.setExpanded(n, true)
}

// Collapse folds the selected node; on a leaf it jumps to the parent.
func (t *TreeModel) Collapse() {
	n := t.Selected()
	if n == nil {
		return
	}
	if len(n.Children) == 0 || !t.IsExpanded(n) {
		if n.Parent != nil {
			for i, c := range t.flat {
				if c == n.Parent {
					t.cursor = i
					break
				}
			}
			t.scrollIntoView()
		}
		return
	}
	t.setExpanded(n, false)
}

// Toggle flips the expand state of the selected node.
func (t *TreeModel) Toggle() {
	n := t.Selected()
	if n == nil || len(n.Children) == 0 {
		return
	}
	t.setExpanded(n, !t.IsExpanded(n))
}

// ExpandAll opens every container.
func (t *TreeModel) ExpandAll() {
	hierarchy.WalkAll(t.roots, func(n *hierarchy.Node) {
		if len(n.Children) > 0 {
			t.expanded[n.Item.ID] = true
		}
	})
	t.rebuildFlat()
	t.clampCursor()
	t.scrollIntoView()
	t.saveState()
}

// CollapseAll folds everything down to the roots.
func (t *TreeModel) CollapseAll() {
	hierarchy.WalkAll(t.roots, func(n *hierarchy.Node) {
		if len(n.Children) > 0 {
			t.expanded[n.Item.ID] = false
		}
	})
	t.rebuildFlat()
	t.cursor = 0
	t.offset = 0
	t.saveState()
}

func (t *TreeModel) setExpanded(n *hierarchy.Node, state bool) {
	t.expanded[n.Item.ID] = state
	t.rebuildFlat()
	// Keep the toggled node selected.
	for i, c := range t.flat {
		if c == n {
			t.cursor = i
			break
		}
	}
	t.clampCursor()
	t.scrollIntoView()
	t.saveState()
}

func (t *TreeModel) rebuildFlat() {
	t.flat = t.flat[:0]
	var visit func(n *hierarchy.Node)
	visit = func(n *hierarchy.Node) {
		t.flat = append(t.flat, n)
		if t.IsExpanded(n) {
			for _, c := range n.Children {
				visit(c)
			}
		}
	}
	for _, r := range t.roots {
		visit(r)
	}
}

func (t *TreeModel) clampCursor() {
	if t.cursor >= len(t.flat) {
		t.cursor = len(t.flat) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

func (t *TreeModel) scrollIntoView() {
	if t.height <= 0 {
		return
	}
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+t.height {
		t.offset = t.cursor - t.height + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// progressBarWidth is the width of the per-row completion bar.
const progressBarWidth = 10

// View renders the visible window of the tree.
func (t *TreeModel) View() string {
	if len(t.flat) == 0 {
		return DimmedStyle.Render("no work items")
	}

	var b strings.Builder
	end := min(t.offset+max(t.height, 1), len(t.flat))
	for i := t.offset; i < end; i++ {
		if i > t.offset {
			b.WriteByte('\n')
		}
		b.WriteString(t.renderRow(t.flat[i], i == t.cursor))
	}
	return b.String()
}

func (t *TreeModel) renderRow(n *hierarchy.Node, selected bool) string {
	indent := strings.Repeat("  ", n.Depth)

	marker := "  "
	if len(n.Children) > 0 {
		if t.IsExpanded(n) {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}

	var progress *model.ProgressInfo
	if t.progress != nil {
		progress = t.progress(n)
	}

	right := ""
	if progress != nil {
		right = fmt.Sprintf("%s %s", RenderProgressBar(progress, progressBarWidth), progress.Display)
	}
	rightWidth := lipgloss.Width(right)

	badge := RenderTypeBadge(n.Item.Type)
	status := RenderStatusBadge(n.Item.Status)

	// id + title get whatever is left of the row.
	fixed := lipgloss.Width(indent) + 2 + 1 + 1 + lipgloss.Width(status) + 1 + rightWidth + 1
	avail := t.width - fixed
	if avail < 8 {
		avail = 8
	}
	label := fmt.Sprintf("%s %s", n.Item.ID, n.Item.Title)
	label = runewidth.Truncate(label, avail, "…")
	label = runewidth.FillRight(label, avail)

	archived := n.Item.Status == model.StatusArchived
	if archived {
		label = DimmedStyle.Render(label)
	}

	row := fmt.Sprintf("%s%s%s %s %s %s", indent, marker, badge, label, status, right)
	if selected {
		return SelectedRowStyle.Render(runewidth.FillRight(stripTrailing(row), max(t.width, 0)))
	}
	return row
}

func stripTrailing(s string) string {
	return strings.TrimRight(s, " ")
}

// treeStatePath returns the persistence path, or "" when disabled.
func (t *TreeModel) treeStatePath() string {
	if t.stateDir == "" {
		return ""
	}
	return filepath.Join(t.stateDir, treeStateFileName)
}

// saveState persists explicit expand/collapse changes. Errors are logged
// but never interrupt the user.
func (t *TreeModel) saveState() {
	path := t.treeStatePath()
	if path == "" {
		return
	}

	state := TreeState{
		Version:  TreeStateVersion,
		Expanded: make(map[string]bool),
	}
	hierarchy.WalkAll(t.roots, func(n *hierarchy.Node) {
		def := n.Depth < defaultExpandDepth
		if explicit, ok := t.expanded[n.Item.ID]; ok && explicit != def {
			state.Expanded[n.Item.ID] = explicit
		}
	})

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		debug.Log("tree state marshal failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		debug.Log("tree state dir failed: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		debug.Log("tree state write failed: %v", err)
	}
}

// loadState restores persisted expand/collapse state. Missing or corrupted
// files silently fall back to defaults; stale IDs are ignored.
func (t *TreeModel) loadState() {
	path := t.treeStatePath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var state TreeState
	if err := json.Unmarshal(data, &state); err != nil {
		debug.Log("invalid tree state file, using defaults: %v", err)
		return
	}
	for id, expanded := range state.Expanded {
		t.expanded[id] = expanded
	}
	t.rebuildFlat()
}
