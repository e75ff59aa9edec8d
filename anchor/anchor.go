// Package anchor provides offset-stable access to small persisted root
// structures living inside a block.
//
// An anchor is the durable root of a component's state (for example the
// free-list head or the allocator counters). It occupies a fixed-layout
// region at a fixed offset of some pinned block; a Handle addresses that
// region and loads/stores the typed value without manual offset bookkeeping
// at the call sites. Storing propagates the dirty flag to the owner of the
// region, so anchor mutations reach the backing store on the next flush.
package anchor

import "fmt"

// Storage is one stable region of bytes with change notification. A pinned
// block handle satisfies it; tests may supply plain in-memory regions.
type Storage interface {
	// Bytes returns the region's buffer. The buffer must stay valid and
	// at a fixed address for the lifetime of every Handle derived from it.
	Bytes() []byte

	// MarkDirty flags the region as modified.
	MarkDirty()
}

// Value is a root structure with a fixed binary layout.
type Value interface {
	// AnchorSize returns the encoded size in bytes.
	AnchorSize() int

	// MarshalAnchor encodes the value into b, which has AnchorSize bytes.
	MarshalAnchor(b []byte)

	// UnmarshalAnchor decodes the value from b, which has AnchorSize bytes.
	UnmarshalAnchor(b []byte)
}

// Handle addresses a fixed-layout value at a fixed offset inside a storage
// region. Handles are cheap values; copies address the same bytes.
type Handle struct {
	s   Storage
	off int
}

// New returns a handle for the value region starting at off.
func New(s Storage, off int) Handle {
	return Handle{s: s, off: off}
}

// Valid reports whether the handle addresses a storage region.
func (h Handle) Valid() bool {
	return h.s != nil
}

// Offset returns the region offset within the storage.
func (h Handle) Offset() int {
	return h.off
}

// Load decodes the persisted value into dst.
func (h Handle) Load(dst Value) {
	dst.UnmarshalAnchor(h.region(dst.AnchorSize()))
}

// Store encodes src into the persisted region and marks it dirty.
func (h Handle) Store(src Value) {
	src.MarshalAnchor(h.region(src.AnchorSize()))
	h.s.MarkDirty()
}

// Slice returns a handle for a nested value at the given relative offset.
func (h Handle) Slice(rel int) Handle {
	return Handle{s: h.s, off: h.off + rel}
}

func (h Handle) region(n int) []byte {
	b := h.s.Bytes()
	if h.off < 0 || h.off+n > len(b) {
		panic(fmt.Sprintf("anchor: region [%d, %d) outside storage of %d bytes",
			h.off, h.off+n, len(b)))
	}
	return b[h.off : h.off+n]
}
