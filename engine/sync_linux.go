//go:build linux

package engine

import "golang.org/x/sys/unix"

// msyncRange syncs [start, end) of a mapping to its backing file.
//
// On Linux, msync() handles sub-slices of a mapping as long as the start is
// page-aligned, which the callers guarantee.
func msyncRange(mapping []byte, start, end int) error {
	return unix.Msync(mapping[start:end], unix.MS_SYNC)
}

// fdatasync performs file descriptor sync. On Linux, fdatasync() provides
// sufficient guarantees.
func fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
