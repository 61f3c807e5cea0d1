// Package datasource discovers and selects the best source of work items
// for wv: the live record tree, or a sqlite snapshot written by the
// authoring tool when the tree itself is absent.
package datasource

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeRecordTree is a plan directory of markdown/JSON records
	SourceTypeRecordTree SourceType = "records"
	// SourceTypeSQLite is a sqlite snapshot database (workplan.db)
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher = more authoritative). The live
// record tree always outranks a snapshot: the snapshot is only as fresh as
// the last export.
const (
	PriorityRecordTree = 100
	PrioritySQLite     = 50
)

// SnapshotFileName is the sqlite snapshot file looked for next to the plan
// directory's records.
const SnapshotFileName = "workplan.db"

// DataSource represents a potential source of work items
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source (directory or file)
	Path string `json:"path"`
	// Priority determines preference when both sources exist
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// ItemCount is the number of items in the source (set during validation)
	ItemCount int `json:"item_count"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, items=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.ItemCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// PlanDir is the plan directory path
	PlanDir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives discovery log messages; nil discards them
	Logger func(msg string)
}

// DiscoverSources finds all potential item sources for a plan directory.
// Results are sorted best-first.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	logf := opts.Logger
	if logf == nil {
		logf = func(string) {}
	}

	planDir := opts.PlanDir
	if planDir == "" {
		return nil, fmt.Errorf("no plan directory given")
	}
	planDir, err := filepath.Abs(planDir)
	if err != nil {
		return nil, err
	}

	var sources []DataSource

	if info, err := os.Stat(planDir); err == nil && info.IsDir() {
		sources = append(sources, DataSource{
			Type:     SourceTypeRecordTree,
			Path:     planDir,
			Priority: PriorityRecordTree,
			ModTime:  info.ModTime(),
		})
		logf(fmt.Sprintf("found record tree: %s", planDir))
	}

	// The snapshot sits inside the plan dir, or next to it when the tree
	// itself is gone.
	for _, dbPath := range []string{
		filepath.Join(planDir, SnapshotFileName),
		filepath.Join(filepath.Dir(planDir), SnapshotFileName),
	} {
		info, err := os.Stat(dbPath)
		if err != nil || info.IsDir() {
			continue
		}
		sources = append(sources, DataSource{
			Type:     SourceTypeSQLite,
			Path:     dbPath,
			Priority: PrioritySQLite,
			ModTime:  info.ModTime(),
		})
		logf(fmt.Sprintf("found sqlite snapshot: %s", dbPath))
		break
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf(fmt.Sprintf("validation failed for %s: %v", sources[i].Path, err))
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Priority != sources[j].Priority {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	return sources, nil
}

// SelectBestSource returns the preferred source from a best-first list.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	if len(sources) == 0 {
		return DataSource{}, fmt.Errorf("no sources available")
	}
	return sources[0], nil
}

// ValidateSource checks that a source is usable and records its item count.
func ValidateSource(s *DataSource) error {
	switch s.Type {
	case SourceTypeRecordTree:
		count, err := countRecords(s.Path)
		if err != nil {
			s.Valid = false
			s.ValidationError = err.Error()
			return err
		}
		if count == 0 {
			s.Valid = false
			s.ValidationError = "no records in tree"
			return fmt.Errorf("no records in %s", s.Path)
		}
		s.Valid = true
		s.ItemCount = count
		return nil

	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(*s)
		if err != nil {
			s.Valid = false
			s.ValidationError = err.Error()
			return err
		}
		defer reader.Close()
		count, err := reader.CountItems()
		if err != nil {
			s.Valid = false
			s.ValidationError = err.Error()
			return err
		}
		s.Valid = true
		s.ItemCount = count
		return nil

	default:
		s.Valid = false
		s.ValidationError = fmt.Sprintf("unknown source type %s", s.Type)
		return fmt.Errorf("unknown source type: %s", s.Type)
	}
}

// countRecords counts record files under a plan root without parsing them.
func countRecords(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".json":
			count++
		}
		return nil
	})
	return count, err
}
