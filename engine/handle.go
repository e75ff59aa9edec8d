package engine

import (
	"fmt"

	"github.com/joshuapare/blockkit/block"
)

// Handle is a ref-counted, scoped view of one pinned block.
//
// Clones share the same underlying pin; the engine sees a single pin for the
// whole group and is unpinned exactly once, when the last handle is
// released. Obtaining a writable view never implies a write-back: callers
// must mark modifications with MarkDirty explicitly.
//
// A handle must never outlive its engine.
type Handle struct {
	s        *sharedPin
	released bool
}

// sharedPin is the state shared by all clones of one pin.
type sharedPin struct {
	e      Engine
	index  block.Index
	cookie Cookie
	buf    []byte
	refs   int
}

// PinBlock pins the block and returns a handle for it. When readContent is
// false the caller promises to fully overwrite the block before reading it.
func PinBlock(e Engine, index block.Index, readContent bool) (*Handle, error) {
	buf, cookie, err := e.Pin(index, readContent)
	if err != nil {
		return nil, fmt.Errorf("pin block %v: %w", index, err)
	}
	return &Handle{s: &sharedPin{
		e:      e,
		index:  index,
		cookie: cookie,
		buf:    buf,
		refs:   1,
	}}, nil
}

// Clone returns a new handle sharing this handle's pin.
func (h *Handle) Clone() *Handle {
	h.use()
	h.s.refs++
	return &Handle{s: h.s}
}

// Index returns the pinned block's index.
func (h *Handle) Index() block.Index {
	h.use()
	return h.s.index
}

// Bytes returns the pinned block's buffer. The buffer stays valid until the
// last handle of this pin is released.
func (h *Handle) Bytes() []byte {
	h.use()
	return h.s.buf
}

// MarkDirty flags the block as modified.
func (h *Handle) MarkDirty() {
	h.use()
	h.s.e.MarkDirty(h.s.index, h.s.cookie)
}

// Flush writes the block back if it is dirty.
func (h *Handle) Flush() error {
	h.use()
	return h.s.e.Flush(h.s.index, h.s.cookie)
}

// Release drops this handle. The last release of a pin unpins the block.
// Releasing the same handle twice is a contract violation and panics.
func (h *Handle) Release() {
	h.use()
	h.released = true
	h.s.refs--
	if h.s.refs == 0 {
		h.s.e.Unpin(h.s.index, h.s.cookie)
	}
}

func (h *Handle) use() {
	if h.released {
		panic("engine: use of released block handle")
	}
}
