//go:build !linux

package watcher

// Statfs magic inspection is Linux-specific; elsewhere we assume a local
// filesystem and rely on the force-poll escape hatches.
func detectFilesystemType(path string) FilesystemType {
	return FSTypeLocal
}
