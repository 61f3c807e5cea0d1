package hierarchy

import (
	"path/filepath"
	"strings"
)

// Ancestry holds the container directory markers parsed out of a record's
// source path. The path encodes the tree shape: records live under
// projects/<p>/epics/<e>/features/<f>/stories/<leaf>, with every level
// optional except the leaf itself.
type Ancestry struct {
	Project string // project directory name, "" when records live at the plan root
	Epic    string // epic directory name
	Feature string // feature directory name
}

// markerDirs maps a path segment to the ancestry level it introduces. The
// segment after the marker names the container directory.
var markerDirs = map[string]int{
	"projects": 0,
	"epics":    1,
	"features": 2,
}

// ParseAncestry derives the ancestry markers from a source path. The path is
// interpreted relative to the plan root; absolute paths and OS-specific
// separators are tolerated. Unknown segments are ignored, so a record at an
// unexpected depth degrades to whatever markers are present rather than
// failing.
func ParseAncestry(sourcePath string) Ancestry {
	var a Ancestry
	segs := strings.Split(filepath.ToSlash(sourcePath), "/")
	for i := 0; i < len(segs)-1; i++ {
		level, ok := markerDirs[segs[i]]
		if !ok {
			continue
		}
		name := segs[i+1]
		if name == "" || i+1 == len(segs)-1 {
			// The marker's successor is the record file itself, not a
			// container directory (e.g. "epics/epic-1.md").
			continue
		}
		switch level {
		case 0:
			a.Project = name
		case 1:
			a.Epic = name
		case 2:
			a.Feature = name
		}
	}
	return a
}

// ProjectKey returns the cache key of the enclosing project container, or ""
// when the path carries no project marker.
func (a Ancestry) ProjectKey() string {
	return a.Project
}

// EpicKey returns the cache key of the enclosing epic container, or "" when
// the path carries no epic marker.
func (a Ancestry) EpicKey() string {
	if a.Epic == "" {
		return ""
	}
	return joinKey(a.Project, a.Epic)
}

// FeatureKey returns the cache key of the enclosing feature container, or ""
// when the path carries no feature marker.
func (a Ancestry) FeatureKey() string {
	if a.Feature == "" {
		return ""
	}
	return joinKey(a.Project, a.Epic, a.Feature)
}

// ContainerKeys returns the non-empty ancestor keys from outermost to
// innermost. Used by the cache to walk the ancestor chain implied by a
// changed path.
func (a Ancestry) ContainerKeys() []string {
	var keys []string
	if k := a.ProjectKey(); k != "" {
		keys = append(keys, k)
	}
	if k := a.EpicKey(); k != "" {
		keys = append(keys, k)
	}
	if k := a.FeatureKey(); k != "" {
		keys = append(keys, k)
	}
	return keys
}

func joinKey(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}
