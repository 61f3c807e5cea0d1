//go:build linux

package watcher

import (
	"os"
	"syscall"
)

// Statfs f_type magic numbers from linux/magic.h.
const (
	nfsSuperMagic   = 0x6969
	smbSuperMagic   = 0x517b
	smb2SuperMagic  = 0xfe534d42
	cifsSuperMagic  = 0xff534d42
	fuseSuperMagic  = 0x65735546
	sshfsSuperMagic = 0x53464846
)

func detectFilesystemType(path string) FilesystemType {
	probe := probePath(path, func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	})

	var stat syscall.Statfs_t
	if err := syscall.Statfs(probe, &stat); err != nil {
		return FSTypeUnknown
	}

	switch uint32(stat.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, smb2SuperMagic, cifsSuperMagic:
		return FSTypeSMB
	case sshfsSuperMagic:
		return FSTypeSSHFS
	case fuseSuperMagic:
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}
