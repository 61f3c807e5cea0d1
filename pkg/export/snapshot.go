// Package export renders static artifacts from the work-item forest: an
// SVG/PNG tree snapshot and a markdown outline. Exports are one-shot reads of
// the built hierarchy; they never touch the records themselves.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/workviz/workviz/pkg/hierarchy"
	"github.com/workviz/workviz/pkg/model"
)

// ProgressFunc resolves the progress of a container node.
type ProgressFunc func(*hierarchy.Node) *model.ProgressInfo

// TreeSnapshotOptions controls tree snapshot export behaviour.
type TreeSnapshotOptions struct {
	Path     string // Output path; format inferred from extension when Format empty
	Format   string // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title    string // Optional title rendered in the header block
	Roots    []*hierarchy.Node
	Progress ProgressFunc // may be nil, disables the progress column
}

// SaveTreeSnapshot renders the forest as a static image. The visual language
// mirrors the TUI tree pane: one indented row per item, colored by status,
// with a completion bar on containers.
func SaveTreeSnapshot(opts TreeSnapshotOptions) error {
	if len(opts.Roots) == 0 {
		return fmt.Errorf("no work items to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}

	layout := buildLayout(opts)

	switch format {
	case "svg":
		return renderSVG(opts.Path, layout)
	case "png":
		return renderPNG(opts.Path, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type layoutRow struct {
	ID       string
	Title    string
	Type     model.ItemType
	Status   model.Status
	Depth    int
	Progress *model.ProgressInfo
	X, Y     float64
	W, H     float64
}

type layoutResult struct {
	Rows    []layoutRow
	Width   int
	Height  int
	Header  float64
	Summary summaryInfo
}

type summaryInfo struct {
	Title      string
	ItemCount  int
	Containers int
	Done       int
}

func buildLayout(opts TreeSnapshotOptions) layoutResult {
	const (
		rowH         = 30.0
		rowGap       = 8.0
		indentStep   = 28.0
		baseRowW     = 460.0
		padding      = 36.0
		headerHeight = 96.0
	)

	var rows []layoutRow
	maxDepth := 0
	containers := 0
	done := 0
	hierarchy.WalkAll(opts.Roots, func(n *hierarchy.Node) {
		var p *model.ProgressInfo
		if opts.Progress != nil {
			p = opts.Progress(n)
		}
		if len(n.Children) > 0 {
			containers++
		}
		if n.Item.Status == model.StatusCompleted {
			done++
		}
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
		rows = append(rows, layoutRow{
			ID:       n.Item.ID,
			Title:    truncate(n.Item.Title, 48),
			Type:     n.Item.Type,
			Status:   n.Item.Status,
			Depth:    n.Depth,
			Progress: p,
		})
	})

	for i := range rows {
		indent := float64(rows[i].Depth) * indentStep
		rows[i].X = padding + indent
		rows[i].Y = padding + headerHeight + float64(i)*(rowH+rowGap)
		rows[i].W = baseRowW - indent
		rows[i].H = rowH
	}

	width := int(padding*2 + baseRowW + progressColW + 16)
	if width < 640 {
		width = 640
	}
	height := int(padding*2 + headerHeight + float64(len(rows))*(rowH+rowGap))
	if height < 320 {
		height = 320
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Work Plan Snapshot"
	}

	return layoutResult{
		Rows:   rows,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: summaryInfo{
			Title:      title,
			ItemCount:  len(rows),
			Containers: containers,
			Done:       done,
		},
	}
}

// progressColW is the width reserved for the completion bar column.
const progressColW = 160.0

// --- rendering -------------------------------------------------------------

var (
	colorNotStarted = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	colorPlanning   = color.RGBA{0xdb, 0xea, 0xfe, 0xff}
	colorReady      = color.RGBA{0xcf, 0xfa, 0xfe, 0xff}
	colorInProg     = color.RGBA{0xff, 0xf3, 0xe0, 0xff}
	colorBlockedBG  = color.RGBA{0xff, 0xcd, 0xd2, 0xff}
	colorDone       = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	colorArchivedBG = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}
	colorStroke     = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText       = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle     = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop   = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG   = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorBarFill    = color.RGBA{0x4a, 0xde, 0x80, 0xff}
	colorBarTrack   = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
)

func statusFill(s model.Status) color.RGBA {
	switch s {
	case model.StatusInPlanning:
		return colorPlanning
	case model.StatusReady:
		return colorReady
	case model.StatusInProgress:
		return colorInProg
	case model.StatusBlocked:
		return colorBlockedBG
	case model.StatusCompleted:
		return colorDone
	case model.StatusArchived:
		return colorArchivedBG
	default:
		return colorNotStarted
	}
}

func renderPNG(path string, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("items: %d  containers: %d  completed: %d",
		layout.Summary.ItemCount, layout.Summary.Containers, layout.Summary.Done), 32, 60, 0, 0.5)

	for _, r := range layout.Rows {
		dc.SetColor(statusFill(r.Status))
		dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, 6)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, 6)
		dc.Stroke()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("[%s] %s", typeTag(r.Type), r.ID), r.X+10, r.Y+10, 0, 0.5)
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(r.Title, r.X+10, r.Y+22, 0, 0.5)

		if r.Progress != nil {
			barX := r.X + r.W + 12
			barY := r.Y + r.H/2 - 5
			drawBarPNG(dc, barX, barY, r.Progress)
		}
	}

	return dc.SavePNG(path)
}

func drawBarPNG(dc *gg.Context, x, y float64, p *model.ProgressInfo) {
	const barW, barH = 100.0, 10.0
	dc.SetColor(colorBarTrack)
	dc.DrawRoundedRectangle(x, y, barW, barH, 4)
	dc.Fill()
	if p.Percentage > 0 {
		dc.SetColor(colorBarFill)
		dc.DrawRoundedRectangle(x, y, barW*float64(p.Percentage)/100, barH, 4)
		dc.Fill()
	}
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(p.Display, x+barW+8, y+barH/2, 0, 0.5)
}

func renderSVG(path string, layout layoutResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, layout)
}

func renderSVGToWriter(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(32, 44, layout.Summary.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 64, fmt.Sprintf("items: %d  containers: %d  completed: %d",
		layout.Summary.ItemCount, layout.Summary.Containers, layout.Summary.Done),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))

	for _, r := range layout.Rows {
		x, y := int(r.X), int(r.Y)
		canvas.Roundrect(x, y, int(r.W), int(r.H), 6, 6,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(statusFill(r.Status)), css(colorStroke)))
		canvas.Text(x+10, y+13, fmt.Sprintf("[%s] %s", typeTag(r.Type), r.ID),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(x+10, y+26, r.Title,
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))

		if r.Progress != nil {
			drawBarSVG(canvas, int(r.X+r.W)+12, y+int(r.H/2)-5, r.Progress)
		}
	}

	canvas.End()
	return nil
}

func drawBarSVG(canvas *svg.SVG, x, y int, p *model.ProgressInfo) {
	const barW, barH = 100, 10
	canvas.Roundrect(x, y, barW, barH, 4, 4, fmt.Sprintf("fill:%s", css(colorBarTrack)))
	if p.Percentage > 0 {
		canvas.Roundrect(x, y, barW*p.Percentage/100, barH, 4, 4, fmt.Sprintf("fill:%s", css(colorBarFill)))
	}
	canvas.Text(x+barW+8, y+barH-1, p.Display,
		fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
}

// --- helpers ---------------------------------------------------------------

func typeTag(t model.ItemType) string {
	switch t {
	case model.TypeProject:
		return "PRJ"
	case model.TypeEpic:
		return "EPC"
	case model.TypeFeature:
		return "FTR"
	case model.TypeStory:
		return "STY"
	case model.TypeBug:
		return "BUG"
	case model.TypeSpec:
		return "DOC"
	case model.TypePhase:
		return "PHS"
	default:
		return "???"
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
