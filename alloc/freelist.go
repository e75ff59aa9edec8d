package alloc

import (
	"fmt"

	"github.com/joshuapare/blockkit/anchor"
	"github.com/joshuapare/blockkit/block"
	"github.com/joshuapare/blockkit/engine"
	"github.com/joshuapare/blockkit/internal/format"
)

// ListAnchor is the free list's persisted root: the head node's index, or
// the invalid sentinel for an empty list.
type ListAnchor struct {
	Head block.Index
}

// AnchorSize returns the encoded size in bytes.
func (a *ListAnchor) AnchorSize() int { return 8 }

// MarshalAnchor encodes the anchor.
func (a *ListAnchor) MarshalAnchor(b []byte) {
	format.PutU64(b, 0, a.Head.Value())
}

// UnmarshalAnchor decodes the anchor.
func (a *ListAnchor) UnmarshalAnchor(b []byte) {
	a.Head = block.New(format.ReadU64(b, 0))
}

// List is a singly linked list of free block indices stored inside the freed
// blocks themselves. Each node occupies exactly one block and holds the next
// node's index plus an array of additional free indices; freed storage
// doubles as the list's metadata, so bookkeeping allocates nothing.
//
// Entries are appended at the tail of a node's array and popped from the
// tail, so within one node the list is LIFO. A block pushed while the head
// node is full becomes the new head node itself.
type List struct {
	e        engine.Engine
	anchor   anchor.Handle
	capacity int // entry slots per node
}

// NewList opens the free list rooted at the given anchor.
func NewList(e engine.Engine, a anchor.Handle) (*List, error) {
	capacity := format.ListNodeCapacity(e.BlockSize())
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockTooSmall, e.BlockSize())
	}
	return &List{e: e, anchor: a, capacity: capacity}, nil
}

// NodeCapacity returns the number of entry slots per list node.
func (l *List) NodeCapacity() int { return l.capacity }

// Empty reports whether the list holds no free blocks.
func (l *List) Empty() bool {
	var a ListAnchor
	l.anchor.Load(&a)
	return !a.Head.Valid()
}

// Push adds the given block to the list. The caller relinquishes the block:
// its content is overwritten and it must not be referenced elsewhere.
func (l *List) Push(index block.Index) error {
	if !index.Valid() {
		panic("alloc: push of invalid block index")
	}

	var a ListAnchor
	l.anchor.Load(&a)

	if a.Head.Valid() {
		h, err := engine.PinBlock(l.e, a.Head, true)
		if err != nil {
			return err
		}
		count := int(format.ReadU32(h.Bytes(), format.ListNodeCountOffset))
		if count < l.capacity {
			b := h.Bytes()
			format.PutU64(b, format.ListNodeEntriesOffset+count*format.ListEntrySize, index.Value())
			format.PutU32(b, format.ListNodeCountOffset, uint32(count+1))
			h.MarkDirty()
			h.Release()
			return nil
		}
		h.Release()
	}

	// Head is missing or full: the pushed block becomes the new head node,
	// linking to the old head. Overwrite path, no need to read old content.
	h, err := engine.PinBlock(l.e, index, false)
	if err != nil {
		return err
	}
	b := h.Bytes()
	format.PutU64(b, format.ListNodeNextOffset, a.Head.Value())
	format.PutU32(b, format.ListNodeCountOffset, 0)
	format.PutU32(b, format.ListNodeCountOffset+4, 0)
	h.MarkDirty()
	h.Release()

	a.Head = index
	l.anchor.Store(&a)
	return nil
}

// Pop removes one block from the list and returns its index: the tail entry
// of the head node's array, or the head node's own block once its array is
// drained. Returns ErrEmpty if the list is empty.
func (l *List) Pop() (block.Index, error) {
	var a ListAnchor
	l.anchor.Load(&a)
	if !a.Head.Valid() {
		return block.Invalid, ErrEmpty
	}

	h, err := engine.PinBlock(l.e, a.Head, true)
	if err != nil {
		return block.Invalid, err
	}

	b := h.Bytes()
	count := int(format.ReadU32(b, format.ListNodeCountOffset))
	if count > 0 {
		index := block.New(format.ReadU64(b, format.ListNodeEntriesOffset+(count-1)*format.ListEntrySize))
		format.PutU32(b, format.ListNodeCountOffset, uint32(count-1))
		h.MarkDirty()
		h.Release()
		return index, nil
	}

	// Array drained: pop the head node itself, relinking the anchor to the
	// node's stored successor.
	next := block.New(format.ReadU64(b, format.ListNodeNextOffset))
	h.Release()

	index := a.Head
	a.Head = next
	l.anchor.Store(&a)
	return index, nil
}

// Contains walks the list and reports whether the block is on it. This is a
// linear scan over all nodes, intended for the debug free check only.
func (l *List) Contains(index block.Index) (bool, error) {
	var a ListAnchor
	l.anchor.Load(&a)

	for node := a.Head; node.Valid(); {
		if node.Compare(index) == 0 {
			return true, nil
		}
		h, err := engine.PinBlock(l.e, node, true)
		if err != nil {
			return false, err
		}
		b := h.Bytes()
		count := int(format.ReadU32(b, format.ListNodeCountOffset))
		found := false
		for i := 0; i < count; i++ {
			entry := block.New(format.ReadU64(b, format.ListNodeEntriesOffset+i*format.ListEntrySize))
			if entry.Compare(index) == 0 {
				found = true
				break
			}
		}
		next := block.New(format.ReadU64(b, format.ListNodeNextOffset))
		h.Release()
		if found {
			return true, nil
		}
		node = next
	}
	return false, nil
}
