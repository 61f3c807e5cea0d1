// Package testutil provides deterministic work-plan generators for tests.
// Generators produce the same output for the same seed so failures reproduce.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/workviz/workviz/pkg/model"
)

// PlanConfig controls synthetic plan generation.
type PlanConfig struct {
	Projects          int
	EpicsPerProject   int
	FeaturesPerEpic   int
	StoriesPerFeature int
	Seed              int64
}

// DefaultPlanConfig is a small plan useful for most tests.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Projects:          1,
		EpicsPerProject:   2,
		FeaturesPerEpic:   2,
		StoriesPerFeature: 3,
		Seed:              42,
	}
}

// statusCycle is the distribution leaves are drawn from. Weighted towards
// active states so progress numbers are non-trivial.
var statusCycle = []model.Status{
	model.StatusCompleted,
	model.StatusInProgress,
	model.StatusNotStarted,
	model.StatusCompleted,
	model.StatusBlocked,
	model.StatusReady,
}

// GenerateItems builds a synthetic forest of work items with path-encoded
// ancestry, deterministically from cfg.Seed.
func GenerateItems(cfg PlanConfig) []model.WorkItem {
	rng := rand.New(rand.NewSource(cfg.Seed))
	var items []model.WorkItem

	for p := 1; p <= cfg.Projects; p++ {
		pdir := fmt.Sprintf("proj-%d", p)
		items = append(items, model.WorkItem{
			ID:         fmt.Sprintf("proj-%d", p),
			Title:      fmt.Sprintf("Project %d", p),
			Type:       model.TypeProject,
			Status:     model.StatusInProgress,
			SourcePath: filepath.ToSlash(filepath.Join("projects", pdir, "project.md")),
		})

		for e := 1; e <= cfg.EpicsPerProject; e++ {
			edir := fmt.Sprintf("epic-%d-%d", p, e)
			items = append(items, model.WorkItem{
				ID:         edir,
				Title:      fmt.Sprintf("Epic %d.%d", p, e),
				Type:       model.TypeEpic,
				Status:     model.StatusInProgress,
				SourcePath: filepath.ToSlash(filepath.Join("projects", pdir, "epics", edir, "epic.md")),
			})

			for f := 1; f <= cfg.FeaturesPerEpic; f++ {
				fdir := fmt.Sprintf("feat-%d-%d-%d", p, e, f)
				items = append(items, model.WorkItem{
					ID:         fdir,
					Title:      fmt.Sprintf("Feature %d.%d.%d", p, e, f),
					Type:       model.TypeFeature,
					Status:     model.StatusInProgress,
					SourcePath: filepath.ToSlash(filepath.Join("projects", pdir, "epics", edir, "features", fdir, "feature.md")),
				})

				for s := 1; s <= cfg.StoriesPerFeature; s++ {
					id := fmt.Sprintf("story-%d-%d-%d-%d", p, e, f, s)
					typ := model.TypeStory
					if rng.Intn(5) == 0 {
						typ = model.TypeBug
					}
					items = append(items, model.WorkItem{
						ID:       id,
						Title:    fmt.Sprintf("Story %d.%d.%d.%d", p, e, f, s),
						Type:     typ,
						Status:   statusCycle[rng.Intn(len(statusCycle))],
						Priority: rng.Intn(4),
						SourcePath: filepath.ToSlash(filepath.Join(
							"projects", pdir, "epics", edir, "features", fdir, "stories", id+".md")),
					})
				}
			}
		}
	}
	return items
}

// WritePlanTree materializes items as markdown records under dir, using each
// item's SourcePath. The result is a plan directory the scanner can load.
func WritePlanTree(dir string, items []model.WorkItem) error {
	for _, item := range items {
		path := filepath.Join(dir, filepath.FromSlash(item.SourcePath))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create record dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(RenderRecord(item)), 0o644); err != nil {
			return fmt.Errorf("write record %s: %w", item.SourcePath, err)
		}
	}
	return nil
}

// RenderRecord formats one item as a markdown record with YAML frontmatter.
func RenderRecord(item model.WorkItem) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", item.ID)
	fmt.Fprintf(&b, "title: %q\n", item.Title)
	fmt.Fprintf(&b, "type: %s\n", item.Type)
	fmt.Fprintf(&b, "status: %s\n", item.Status)
	if item.Priority != 0 {
		fmt.Fprintf(&b, "priority: %d\n", item.Priority)
	}
	if item.Owner != "" {
		fmt.Fprintf(&b, "owner: %s\n", item.Owner)
	}
	if len(item.Labels) > 0 {
		fmt.Fprintf(&b, "labels: [%s]\n", strings.Join(item.Labels, ", "))
	}
	b.WriteString("---\n")
	if item.Description != "" {
		b.WriteString("\n")
		b.WriteString(item.Description)
		b.WriteString("\n")
	}
	return b.String()
}
