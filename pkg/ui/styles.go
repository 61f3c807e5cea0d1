package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/workviz/workviz/pkg/model"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Adaptive colors for light and dark terminals
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBg          = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorBgSubtle    = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	// Status colors
	ColorStatusNotStarted = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorStatusPlanning   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorStatusReady      = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorStatusInProgress = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorStatusBlocked    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorStatusCompleted  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#50FA7B"}
	ColorStatusArchived   = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#44475A"}

	// Type badge backgrounds (saturated, one letter per type)
	ColorTypeBadgeText = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	ColorTypeProjectBg = lipgloss.AdaptiveColor{Light: "#1F5AA6", Dark: "#2E6FBF"} // Deep blue
	ColorTypeEpicBg    = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#904EE2"} // Purple
	ColorTypeFeatureBg = lipgloss.AdaptiveColor{Light: "#36B37E", Dark: "#36B37E"} // Green
	ColorTypeStoryBg   = lipgloss.AdaptiveColor{Light: "#2684FF", Dark: "#4C9AFF"} // Blue
	ColorTypeBugBg     = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#E5493A"} // Red
	ColorTypeSpecBg    = lipgloss.AdaptiveColor{Light: "#008080", Dark: "#00CED1"} // Teal
	ColorTypePhaseBg   = lipgloss.AdaptiveColor{Light: "#6B778C", Dark: "#6B778C"} // Gray
)

// ══════════════════════════════════════════════════════════════════════════════
// PANEL STYLES - For the tree/detail split
// ══════════════════════════════════════════════════════════════════════════════

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBgHighlight)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SelectedRowStyle = lipgloss.NewStyle().
				Background(ColorBgHighlight).
				Bold(true)

	DimmedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// statusColor maps a status to its display color.
func statusColor(s model.Status) lipgloss.AdaptiveColor {
	switch s {
	case model.StatusNotStarted:
		return ColorStatusNotStarted
	case model.StatusInPlanning:
		return ColorStatusPlanning
	case model.StatusReady:
		return ColorStatusReady
	case model.StatusInProgress:
		return ColorStatusInProgress
	case model.StatusBlocked:
		return ColorStatusBlocked
	case model.StatusCompleted:
		return ColorStatusCompleted
	case model.StatusArchived:
		return ColorStatusArchived
	default:
		return ColorMuted
	}
}

// RenderStatusBadge returns a short styled status badge.
func RenderStatusBadge(status model.Status) string {
	var label string
	switch status {
	case model.StatusNotStarted:
		label = "TODO"
	case model.StatusInPlanning:
		label = "PLAN"
	case model.StatusReady:
		label = "REDY"
	case model.StatusInProgress:
		label = "PROG"
	case model.StatusBlocked:
		label = "BLKD"
	case model.StatusCompleted:
		label = "DONE"
	case model.StatusArchived:
		label = "ARCH"
	default:
		label = "????"
	}

	return lipgloss.NewStyle().
		Foreground(statusColor(status)).
		Render(label)
}

// RenderTypeBadge returns a colored single-letter badge. All badges are
// exactly 1 cell wide for consistent alignment.
func RenderTypeBadge(typ model.ItemType) string {
	var bg lipgloss.AdaptiveColor
	var label string

	switch typ {
	case model.TypeProject:
		bg, label = ColorTypeProjectBg, "P"
	case model.TypeEpic:
		bg, label = ColorTypeEpicBg, "E"
	case model.TypeFeature:
		bg, label = ColorTypeFeatureBg, "F"
	case model.TypeStory:
		bg, label = ColorTypeStoryBg, "S"
	case model.TypeBug:
		bg, label = ColorTypeBugBg, "B"
	case model.TypeSpec:
		bg, label = ColorTypeSpecBg, "D"
	case model.TypePhase:
		bg, label = ColorTypePhaseBg, "H"
	default:
		bg, label = ColorBgSubtle, "·"
	}

	return lipgloss.NewStyle().
		Foreground(ColorTypeBadgeText).
		Background(bg).
		Bold(true).
		Render(label)
}

// RenderProgressBar renders a fixed-width completion bar for a container
// node, colored by how far along it is.
func RenderProgressBar(p *model.ProgressInfo, width int) string {
	if p == nil || width <= 0 {
		return strings.Repeat(" ", max(width, 0))
	}

	filled := p.Percentage * width / 100
	if filled > width {
		filled = width
	}

	var barColor lipgloss.AdaptiveColor
	switch {
	case p.Percentage >= 100:
		barColor = ColorSuccess
	case p.Percentage >= 50:
		barColor = ColorInfo
	case p.Percentage > 0:
		barColor = ColorWarning
	default:
		barColor = ColorMuted
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(barColor).Render(bar)
}

// RenderDivider renders a horizontal divider line.
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}
