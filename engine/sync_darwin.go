//go:build darwin

package engine

import "golang.org/x/sys/unix"

// msyncRange syncs a mapping to its backing file.
//
// On macOS, msync() requires the address to match the original mmap()
// address, so sub-slices cannot be passed. The whole mapping is synced; the
// kernel only writes pages that are actually dirty.
func msyncRange(mapping []byte, _, _ int) error {
	return unix.Msync(mapping, unix.MS_SYNC)
}

// fdatasync performs file descriptor sync.
//
// macOS has no fdatasync; F_FULLFSYNC ensures data reaches the physical
// disk, not just the drive cache.
func fdatasync(fd int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0); err == nil {
		return nil
	}
	return unix.Fsync(fd)
}
