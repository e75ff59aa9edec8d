package engine

import (
	"fmt"

	"github.com/joshuapare/blockkit/block"
)

// pinSlot is the cache entry for one currently pinned block.
type pinSlot struct {
	buf    []byte
	cookie Cookie
	refs   int
	dirty  bool
}

// pinTable is the pin bookkeeping shared by all backends: a map from pinned
// indices to their slots plus the cookie sequence. Cookies identify a slot
// incarnation, so a cookie kept across a full unpin/repin cycle is stale and
// rejected.
type pinTable struct {
	slots      map[block.Index]*pinSlot
	lastCookie Cookie
}

func newPinTable() pinTable {
	return pinTable{slots: make(map[block.Index]*pinSlot)}
}

// acquire returns the live slot for index, bumping its pin count, or nil if
// the block is not currently pinned.
func (t *pinTable) acquire(index block.Index) *pinSlot {
	s := t.slots[index]
	if s != nil {
		s.refs++
	}
	return s
}

// insert creates the slot for a block that was not pinned, with one pin.
func (t *pinTable) insert(index block.Index, buf []byte) *pinSlot {
	t.lastCookie++
	s := &pinSlot{buf: buf, cookie: t.lastCookie, refs: 1}
	t.slots[index] = s
	return s
}

// lookup returns the slot for index after validating the cookie. A missing
// slot or a stale cookie is a protocol violation by the caller.
func (t *pinTable) lookup(index block.Index, cookie Cookie) *pinSlot {
	s := t.slots[index]
	if s == nil {
		panic(fmt.Sprintf("engine: block %v is not pinned", index))
	}
	if s.cookie != cookie {
		panic(fmt.Sprintf("engine: stale cookie for block %v", index))
	}
	return s
}

// release drops one pin and evicts the slot when the count reaches zero.
// Dirty content is never lost on eviction: backends record write-back state
// outside the slot (dirty ranges for the file engine, the slab itself for
// the heap engine).
func (t *pinTable) release(index block.Index, cookie Cookie) {
	s := t.lookup(index, cookie)
	s.refs--
	if s.refs < 0 {
		panic(fmt.Sprintf("engine: unbalanced unpin of block %v", index))
	}
	if s.refs == 0 {
		delete(t.slots, index)
	}
}

// pinned reports whether the block currently has a live pin.
func (t *pinTable) pinned(index block.Index) bool {
	return t.slots[index] != nil
}

// count returns the number of distinct pinned blocks.
func (t *pinTable) count() int {
	return len(t.slots)
}

// clearDirty drops the dirty flag of every slot after a full flush.
func (t *pinTable) clearDirty() {
	for _, s := range t.slots {
		s.dirty = false
	}
}
