package record

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/workviz/workviz/pkg/debug"
	"github.com/workviz/workviz/pkg/model"
)

// ScanOptions configures the behavior of ScanDir.
type ScanOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed
	// records). If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// Concurrency bounds the number of records parsed in parallel.
	// If 0, uses the number of CPUs.
	Concurrency int
}

// skippedDirs are directory names that never hold records.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// ScanDir walks the plan root and parses every record underneath it.
// Malformed records are skipped with a warning, never failed on: a single
// half-saved file must not blank the whole tree. Results are sorted by
// SourcePath (relative to root) so repeated scans are deterministic.
func ScanDir(ctx context.Context, root string, opts ScanOptions) ([]model.WorkItem, error) {
	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			warn(fmt.Sprintf("skipping %s: %v", path, err))
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".json":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan directory: %w", err)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	var mu sync.Mutex
	items := make([]model.WorkItem, 0, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := ParseRecord(path)
			if err != nil {
				warn(fmt.Sprintf("skipping %s: %v", path, err))
				return nil
			}
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				item.SourcePath = filepath.ToSlash(rel)
			}
			mu.Lock()
			items = append(items, *item)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].SourcePath < items[j].SourcePath
	})
	debug.Log("scanned %d records under %s (%d files)", len(items), root, len(paths))
	return items, nil
}
