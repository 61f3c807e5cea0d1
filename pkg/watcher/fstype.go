package watcher

import "path/filepath"

// FilesystemType is a best-effort classification of the filesystem holding a
// watched path. Remote filesystems deliver inotify events unreliably (or not
// at all), so the watcher falls back to polling on them.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

// detectFilesystemTypeFunc is swappable in tests.
var detectFilesystemTypeFunc = detectFilesystemType

// DetectFilesystemType classifies the filesystem holding path. When the path
// does not exist yet, its parent directory is probed instead.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	return detectFilesystemTypeFunc(path)
}

func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS, FSTypeFUSE:
		return true
	default:
		return false
	}
}

// probePath returns path if it exists, otherwise the nearest existing parent.
func probePath(path string, exists func(string) bool) string {
	for p := path; ; {
		if exists(p) {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
