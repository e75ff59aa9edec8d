// Package engine provides fixed-block-size storage backends behind a common
// pin/unpin/dirty/flush protocol.
//
// An engine addresses blocks in [0, Size()) and grows monotonically. Every
// read and write of block content goes through a pin: Pin makes the block's
// bytes resident and stable, MarkDirty flags a modification, Flush writes
// dirty content back, Unpin releases the residency. Most callers should use
// the ref-counted Handle (PinBlock) instead of the raw protocol.
//
// Two backends are provided: a memory-mapped file engine (OpenFile) whose
// content survives process restarts, and a heap engine (NewMem) that is
// behaviorally identical except that it persists nothing. Engines are not
// safe for concurrent use; callers supply external synchronization.
package engine

import "github.com/joshuapare/blockkit/block"

// Cookie is the opaque capability issued by a pin. It must be presented,
// uninterpreted, to every later call on that pin.
type Cookie uint64

// Engine is the abstract fixed-block-size storage backend.
//
// Pin obtains (or re-references) the cache slot for index and returns the
// block's buffer together with the pin cookie. Repeated pins of the same
// index return the same buffer and must be matched by equally many unpins.
// When readContent is false the caller promises to fully overwrite the block
// before reading it, and the backend may skip loading the current content;
// backends whose cache is the storage itself always present current content
// anyway.
//
// Pinning an index outside [0, Size()) or presenting a cookie that does not
// belong to a live pin of that index is a contract violation and panics.
type Engine interface {
	// BlockSize returns the fixed block size in bytes (a power of two).
	BlockSize() int

	// Size returns the current number of addressable blocks.
	Size() uint64

	// Grow extends the addressable range by n blocks. The new blocks carry
	// no defined content until zeroed or overwritten (both backends happen
	// to provide zeroed blocks, but only the overwrite path may rely on
	// content). n must be positive and must not overflow the addressable
	// range; violations are reported eagerly, before any state changes.
	Grow(n uint64) error

	// Pin makes the block resident and returns its buffer and cookie.
	Pin(index block.Index, readContent bool) ([]byte, Cookie, error)

	// Unpin releases one pin of the block. Never fails. Once the pin count
	// reaches zero the backend may evict the slot, but never while dirty
	// content has not been recorded for write-back.
	Unpin(index block.Index, cookie Cookie)

	// MarkDirty flags the pinned block as modified. The content will be
	// written back by the next flush covering the block.
	MarkDirty(index block.Index, cookie Cookie)

	// Flush writes back the pinned block if it is dirty. Idempotent.
	Flush(index block.Index, cookie Cookie) error

	// FlushAll writes back every dirty block. Idempotent.
	FlushAll() error

	// Close flushes and releases the backend. Closing with outstanding
	// pins is a contract violation and panics.
	Close() error
}

// validBlockSize reports whether s is a positive power of two.
func validBlockSize(s int) bool {
	return s > 0 && s&(s-1) == 0
}
