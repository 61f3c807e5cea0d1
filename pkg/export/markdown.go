package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

// GenerateOutline renders the forest as a markdown outline: a summary table
// followed by one nested bullet list per root, completed leaves checked off.
func GenerateOutline(roots []*hierarchy.Node, title string, progress ProgressFunc) (string, error) {
	if len(roots) == 0 {
		return "", fmt.Errorf("no work items to export")
	}
	if strings.TrimSpace(title) == "" {
		title = "Work Plan"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", time.Now().Format(time.RFC1123)))

	counts := make(map[model.Status]int)
	total := 0
	hierarchy.WalkAll(roots, func(n *hierarchy.Node) {
		counts[n.Item.Status]++
		total++
	})

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Total** | %d |\n", total))
	for _, s := range model.ValidStatuses {
		if counts[s] == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", statusLabel(s), counts[s]))
	}
	sb.WriteString("\n## Items\n\n")

	for _, root := range roots {
		writeOutlineNode(&sb, root, progress)
	}

	return sb.String(), nil
}

// SaveOutline writes the markdown outline to a file.
func SaveOutline(path string, roots []*hierarchy.Node, title string, progress ProgressFunc) error {
	md, err := GenerateOutline(roots, title, progress)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(md), 0o644)
}

func writeOutlineNode(sb *strings.Builder, n *hierarchy.Node, progress ProgressFunc) {
	indent := strings.Repeat("  ", n.Depth)

	check := " "
	if n.Item.Status == model.StatusCompleted {
		check = "x"
	}

	line := fmt.Sprintf("%s- [%s] **%s** %s", indent, check, n.Item.ID, n.Item.Title)
	if progress != nil {
		if p := progress(n); p != nil {
			line += fmt.Sprintf(" `%s`", p.Display)
		}
	}
	if n.Item.Status != model.StatusCompleted && n.Item.Status != model.StatusNotStarted {
		line += fmt.Sprintf(" _(%s)_", statusLabel(n.Item.Status))
	}
	sb.WriteString(line)
	sb.WriteByte('\n')

	for _, c := range n.Children {
		writeOutlineNode(sb, c, progress)
	}
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusNotStarted:
		return "Not Started"
	case model.StatusInPlanning:
		return "In Planning"
	case model.StatusReady:
		return "Ready"
	case model.StatusInProgress:
		return "In Progress"
	case model.StatusBlocked:
		return "Blocked"
	case model.StatusCompleted:
		return "Completed"
	case model.StatusArchived:
		return "Archived"
	default:
		return string(s)
	}
}
