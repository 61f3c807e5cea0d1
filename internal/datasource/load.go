package datasource

import (
	"context"
	"fmt"

	"github.com/workviz/workviz/pkg/debug"
	"github.com/workviz/workviz/pkg/model"
	"github.com/workviz/workviz/pkg/record"
)

// LoadItems performs multi-source detection and loading for a plan
// directory. The live record tree always wins when it holds records; the
// sqlite snapshot is the fallback for checkouts where only the export
// survived. The returned string describes the chosen source.
func LoadItems(ctx context.Context, planDir string, warn func(string)) ([]model.WorkItem, string, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		PlanDir:                planDir,
		ValidateAfterDiscovery: true,
		Logger:                 func(msg string) { debug.Log("%s", msg) },
	})
	if err != nil {
		return nil, "", err
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, "", fmt.Errorf("no work items found under %s: %w", planDir, err)
	}

	items, err := LoadFromSource(ctx, best, warn)
	if err != nil {
		return nil, "", err
	}
	return items, best.String(), nil
}

// LoadFromSource loads items from a specific DataSource, dispatching to the
// appropriate reader based on source type.
func LoadFromSource(ctx context.Context, source DataSource, warn func(string)) ([]model.WorkItem, error) {
	switch source.Type {
	case SourceTypeRecordTree:
		return record.ScanDir(ctx, source.Path, record.ScanOptions{WarningHandler: warn})

	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadItems()

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
