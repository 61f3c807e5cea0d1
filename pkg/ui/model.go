// Package ui renders the work-item tree as a terminal UI. It is a pure
// consumer of the engine's read surface: every redraw pulls from the caches,
// and nothing in here mutates a node.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/workviz/workviz/pkg/debug"
	"github.com/workviz/workviz/pkg/engine"
	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
	"github.com/workviz/workviz/pkg/watcher"
)

// Focus identifies which pane receives navigation keys.
type Focus int

const (
	FocusTree Focus = iota
	FocusDetail
)

// Messages pumped into the Bubble Tea loop.
type (
	// RefreshMsg is sent when the engine fired a coalesced refresh.
	RefreshMsg struct{}
	// WatchEventMsg carries one debounced file change.
	WatchEventMsg struct{ Event watcher.Event }
	// GitSignalMsg carries one repository-metadata signal.
	GitSignalMsg struct{ Signal watcher.GitSignal }
	// WatchErrMsg carries a watcher error.
	WatchErrMsg struct{ Err error }
	// clearStatusMsg expires the transient status line.
	clearStatusMsg struct{}
)

// WaitRefreshCmd waits for the next engine refresh notification.
func WaitRefreshCmd(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-e.Refresh()
		return RefreshMsg{}
	}
}

// WatchEventCmd waits for the next file change event.
func WatchEventCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		return WatchEventMsg{Event: <-w.Changed()}
	}
}

// GitSignalCmd waits for the next repository-metadata signal.
func GitSignalCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		return GitSignalMsg{Signal: <-w.GitSignals()}
	}
}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// Options configures a new UI model.
type Options struct {
	Engine  *engine.Engine
	Watcher *watcher.Watcher // nil disables live updates
	PlanDir string
	// Group is the initial grouping key; zero value selects "all".
	Group hierarchy.GroupKey
	// ShowArchived starts with archived items visible.
	ShowArchived bool
	// SplitRatio is the tree pane's share of the width (0.2-0.8).
	SplitRatio float64
	// StateDir persists tree expand state; empty disables persistence.
	StateDir string
	// SourceDesc describes where the items came from, for the header.
	SourceDesc string
}

// Model is the main Bubble Tea model for wv.
type Model struct {
	engine  *engine.Engine
	watcher *watcher.Watcher
	planDir string

	tree       TreeModel
	detail     viewport.Model
	mdRenderer *glamour.TermRenderer

	group        hierarchy.GroupKey
	showArchived bool
	focus        Focus
	splitRatio   float64
	sourceDesc   string

	width  int
	height int
	ready  bool

	statusLine string
	loadErr    error
}

// NewModel builds the UI model. The first forest is pulled synchronously so
// the initial frame is never empty.
func NewModel(opts Options) Model {
	m := Model{
		engine:       opts.Engine,
		watcher:      opts.Watcher,
		planDir:      opts.PlanDir,
		group:        opts.Group,
		showArchived: opts.ShowArchived,
		splitRatio:   opts.SplitRatio,
		sourceDesc:   opts.SourceDesc,
	}
	if m.group == "" {
		m.group = hierarchy.GroupAll
	}
	if m.showArchived && m.group == hierarchy.GroupAll {
		m.group = hierarchy.GroupAllArchived
	}
	if m.splitRatio < 0.2 || m.splitRatio > 0.8 {
		m.splitRatio = 0.55
	}

	m.tree = NewTreeModel(nil)
	m.tree.SetStateDir(opts.StateDir)
	m.detail = viewport.New(0, 0)
	m.reloadTree()
	return m
}

// Init starts the message pumps.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{WaitRefreshCmd(m.engine)}
	if m.watcher != nil {
		cmds = append(cmds, WatchEventCmd(m.watcher), GitSignalCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.updateDetail()

	case RefreshMsg:
		debug.Log("ui: refresh")
		m.reloadTree()
		cmds = append(cmds, WaitRefreshCmd(m.engine))

	case WatchEventMsg:
		m.engine.HandleChange(m.relPath(msg.Event.Path))
		cmds = append(cmds, WatchEventCmd(m.watcher))

	case GitSignalMsg:
		m.engine.HandleGitSignal(toEngineSignal(msg.Signal.Kind))
		cmds = append(cmds, GitSignalCmd(m.watcher))

	case WatchErrMsg:
		m.statusLine = fmt.Sprintf("watch error: %v", msg.Err)
		cmds = append(cmds, clearStatusCmd())

	case clearStatusMsg:
		m.statusLine = ""

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		if m.focus == FocusTree {
			m.focus = FocusDetail
		} else {
			m.focus = FocusTree
		}
		return m, nil

	case "r":
		m.engine.RefreshNow()
		m.statusLine = "refreshed"
		return m, clearStatusCmd()

	case "a":
		m.showArchived = !m.showArchived
		if m.group == hierarchy.GroupAll || m.group == hierarchy.GroupAllArchived {
			if m.showArchived {
				m.group = hierarchy.GroupAllArchived
			} else {
				m.group = hierarchy.GroupAll
			}
		}
		m.reloadTree()
		return m, nil

	case "/":
		m.group = nextGroup(m.group, m.showArchived)
		m.reloadTree()
		return m, nil

	case "y":
		if n := m.tree.Selected(); n != nil {
			if err := clipboard.WriteAll(n.Item.ID); err != nil {
				m.statusLine = fmt.Sprintf("yank failed: %v", err)
			} else {
				m.statusLine = fmt.Sprintf("yanked %s", n.Item.ID)
			}
			return m, clearStatusCmd()
		}
		return m, nil
	}

	if m.focus == FocusDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "j", "down":
		m.tree.MoveDown()
		m.updateDetail()
	case "k", "up":
		m.tree.MoveUp()
		m.updateDetail()
	case "g", "home":
		m.tree.MoveTop()
		m.updateDetail()
	case "G", "end":
		m.tree.MoveBottom()
		m.updateDetail()
	case "pgdown", "ctrl+d":
		m.tree.PageDown()
		m.updateDetail()
	case "pgup", "ctrl+u":
		m.tree.PageUp()
		m.updateDetail()
	case "l", "right":
		m.tree.Expand()
	case "h", "left":
		m.tree.Collapse()
		m.updateDetail()
	case "enter", " ":
		m.tree.Toggle()
	case "E":
		m.tree.ExpandAll()
	case "C":
		m.tree.CollapseAll()
		m.updateDetail()
	}
	return m, nil
}

// View renders the full frame.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	treeView := m.treePaneStyle().Render(m.tree.View())
	detailView := m.detailPaneStyle().Render(m.detail.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, treeView, detailView)

	return lipgloss.JoinVertical(lipgloss.Left, header, RenderDivider(m.width), body, footer)
}

func (m Model) renderHeader() string {
	group := "all"
	if s, ok := m.group.Status(); ok {
		group = string(s)
	} else if m.group == hierarchy.GroupAllArchived {
		group = "all+archived"
	}
	title := HeaderStyle.Render("wv")
	info := DimmedStyle.Render(fmt.Sprintf(" %s  [%s]", m.planDir, group))
	line := title + info
	if m.loadErr != nil {
		line += "  " + lipgloss.NewStyle().Foreground(ColorDanger).Render(m.loadErr.Error())
	}
	return line
}

func (m Model) renderFooter() string {
	if m.statusLine != "" {
		return FooterStyle.Render(m.statusLine)
	}
	return FooterStyle.Render("j/k move · h/l fold · enter toggle · / filter · a archived · y yank · r refresh · q quit")
}

func (m *Model) treePaneStyle() lipgloss.Style {
	style := PanelStyle
	if m.focus == FocusTree {
		style = FocusedPanelStyle
	}
	return style.Width(m.treeWidth()).Height(m.bodyHeight())
}

func (m *Model) detailPaneStyle() lipgloss.Style {
	style := PanelStyle
	if m.focus == FocusDetail {
		style = FocusedPanelStyle
	}
	return style.Width(m.detailWidth()).Height(m.bodyHeight())
}

func (m *Model) treeWidth() int {
	w := int(float64(m.width) * m.splitRatio)
	return max(w-2, 20)
}

func (m *Model) detailWidth() int {
	return max(m.width-m.treeWidth()-4, 20)
}

func (m *Model) bodyHeight() int {
	return max(m.height-5, 3)
}

func (m *Model) layout() {
	m.tree.SetSize(m.treeWidth(), m.bodyHeight())
	m.detail.Width = m.detailWidth()
	m.detail.Height = m.bodyHeight()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(m.detailWidth()-2, 20)),
	)
	if err == nil {
		m.mdRenderer = renderer
	}
}

// reloadTree rebuilds the visible forest from the engine caches and
// refreshes the progress column closure for the current grouping key.
func (m *Model) reloadTree() {
	group := m.group
	m.tree.progress = func(n *hierarchy.Node) *model.ProgressInfo {
		return m.engine.GetProgress(group, n)
	}

	roots, err := m.engine.GetRoots(group)
	if err != nil {
		m.loadErr = err
		return
	}
	m.loadErr = nil
	m.tree.SetNodes(roots)
	m.updateDetail()
}

// updateDetail re-renders the detail pane for the selected item.
func (m *Model) updateDetail() {
	n := m.tree.Selected()
	if n == nil {
		m.detail.SetContent(DimmedStyle.Render("nothing selected"))
		return
	}

	md := renderItemMarkdown(n, m.tree.progress)
	if m.mdRenderer != nil {
		if out, err := m.mdRenderer.Render(md); err == nil {
			m.detail.SetContent(strings.TrimRight(out, "\n"))
			m.detail.GotoTop()
			return
		}
	}
	m.detail.SetContent(md)
	m.detail.GotoTop()
}

// renderItemMarkdown builds the markdown shown in the detail pane.
func renderItemMarkdown(n *hierarchy.Node, progress ProgressFunc) string {
	item := n.Item

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	fmt.Fprintf(&b, "`%s` · %s · %s · P%d\n\n", item.ID, item.Type, item.Status, item.Priority)
	if item.Owner != "" {
		fmt.Fprintf(&b, "**Owner:** %s\n\n", item.Owner)
	}
	if len(item.Labels) > 0 {
		fmt.Fprintf(&b, "**Labels:** %s\n\n", strings.Join(item.Labels, ", "))
	}
	if progress != nil {
		if p := progress(n); p != nil {
			fmt.Fprintf(&b, "**Progress:** %s\n\n", p.Display)
		}
	}
	if item.SourcePath != "" {
		fmt.Fprintf(&b, "**Source:** `%s`\n\n", item.SourcePath)
	}
	if item.Description != "" {
		b.WriteString("---\n\n")
		b.WriteString(item.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// relPath converts a watcher's absolute path into the plan-relative form the
// engine caches are keyed by.
func (m *Model) relPath(path string) string {
	if m.planDir == "" {
		return path
	}
	rel, err := filepath.Rel(m.planDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func toEngineSignal(kind watcher.GitSignalKind) engine.GitSignalKind {
	if kind == watcher.GitIndexChanged {
		return engine.SignalIndexChanged
	}
	return engine.SignalRefChanged
}

// nextGroup cycles the grouping key: all → per-status buckets → all.
func nextGroup(current hierarchy.GroupKey, showArchived bool) hierarchy.GroupKey {
	all := hierarchy.GroupAll
	if showArchived {
		all = hierarchy.GroupAllArchived
	}

	cycle := make([]hierarchy.GroupKey, 0, len(model.ValidStatuses)+1)
	cycle = append(cycle, all)
	for _, s := range model.ValidStatuses {
		if s == model.StatusArchived && !showArchived {
			continue
		}
		cycle = append(cycle, hierarchy.StatusGroup(s))
	}

	for i, key := range cycle {
		if key == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return all
}
