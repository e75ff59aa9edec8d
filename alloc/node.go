package alloc

import (
	"fmt"
	"os"

	"github.com/joshuapare/blockkit/anchor"
	"github.com/joshuapare/blockkit/block"
	"github.com/joshuapare/blockkit/engine"
	"github.com/joshuapare/blockkit/internal/format"
)

// DefaultChunkSize is the number of blocks added per engine grow.
const DefaultChunkSize = 32

// Runtime debug flags, controlled by environment variables.
var (
	logAlloc  = os.Getenv("BLOCKKIT_LOG_ALLOC") != ""
	checkFree = os.Getenv("BLOCKKIT_CHECK_FREE") != ""
)

// Anchor is the node allocator's persisted root: the free-list anchor plus
// two monotone counters. At all times 0 <= Free <= Total, and Total - Free
// blocks are in use by the owning container.
type Anchor struct {
	List  ListAnchor
	Total uint64 // blocks ever carved out of the engine
	Free  uint64 // blocks currently on the free list
}

// AnchorSize returns the encoded size in bytes.
func (a *Anchor) AnchorSize() int { return 24 }

// MarshalAnchor encodes the anchor.
func (a *Anchor) MarshalAnchor(b []byte) {
	a.List.MarshalAnchor(b[0:8])
	format.PutU64(b, 8, a.Total)
	format.PutU64(b, 16, a.Free)
}

// UnmarshalAnchor decodes the anchor.
func (a *Anchor) UnmarshalAnchor(b []byte) {
	a.List.UnmarshalAnchor(b[0:8])
	a.Total = format.ReadU64(b, 8)
	a.Free = format.ReadU64(b, 16)
}

// counters is the counter pair of the anchor, addressed separately so
// counter updates cannot clobber a list head mutated by a concurrent (in
// call-stack order) free-list operation.
type counters struct {
	Total uint64
	Free  uint64
}

func (c *counters) AnchorSize() int { return 16 }

func (c *counters) MarshalAnchor(b []byte) {
	format.PutU64(b, 0, c.Total)
	format.PutU64(b, 8, c.Free)
}

func (c *counters) UnmarshalAnchor(b []byte) {
	c.Total = format.ReadU64(b, 0)
	c.Free = format.ReadU64(b, 8)
}

// Stats holds allocator statistics for instrumentation and tests.
type Stats struct {
	GrowCalls   int    // engine grow operations
	BlocksGrown uint64 // total blocks added via grow
	AllocCalls  int    // successful Allocate calls
	FreeCalls   int    // successful Free calls
}

// NodeAllocator hands out single blocks for container nodes. Freed blocks go
// onto the free list; when the list is empty the engine is grown by
// chunkSize blocks at once, amortizing growth cost. Only single-block
// operations are supported.
type NodeAllocator struct {
	e         engine.Engine
	anchor    anchor.Handle
	counters  anchor.Handle
	list      *List
	chunkSize uint64
	stats     Stats
}

var _ Allocator = (*NodeAllocator)(nil)

// InitAnchor writes a fresh, empty allocator anchor. Called once when the
// owning container is first initialized.
func InitAnchor(a anchor.Handle) {
	a.Store(&Anchor{List: ListAnchor{Head: block.Invalid}})
}

// NewNodeAllocator opens the allocator rooted at the given anchor.
func NewNodeAllocator(e engine.Engine, a anchor.Handle) (*NodeAllocator, error) {
	list, err := NewList(e, a.Slice(0))
	if err != nil {
		return nil, err
	}
	return &NodeAllocator{
		e:         e,
		anchor:    a,
		counters:  a.Slice(8),
		list:      list,
		chunkSize: DefaultChunkSize,
	}, nil
}

// ChunkSize returns the number of blocks added per engine grow.
func (na *NodeAllocator) ChunkSize() uint64 { return na.chunkSize }

// SetChunkSize sets the number of blocks added per engine grow. n must be
// at least 1.
func (na *NodeAllocator) SetChunkSize(n uint64) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrChunkSize, n)
	}
	na.chunkSize = n
	return nil
}

// DataTotal returns the number of blocks ever carved out of the engine.
func (na *NodeAllocator) DataTotal() uint64 {
	var c counters
	na.counters.Load(&c)
	return c.Total
}

// DataFree returns the number of blocks currently on the free list.
func (na *NodeAllocator) DataFree() uint64 {
	var c counters
	na.counters.Load(&c)
	return c.Free
}

// DataUsed returns the number of blocks currently in use.
func (na *NodeAllocator) DataUsed() uint64 {
	var c counters
	na.counters.Load(&c)
	return c.Total - c.Free
}

// Stats returns a copy of the allocator's statistics.
func (na *NodeAllocator) Stats() Stats { return na.stats }

// Allocate returns one freshly allocated block. Only n == 1 is supported;
// any other count fails before any state changes.
func (na *NodeAllocator) Allocate(n uint64) (block.Index, error) {
	if n != 1 {
		return block.Invalid, fmt.Errorf("%w: allocate %d blocks", ErrUnsupported, n)
	}

	if na.list.Empty() {
		if err := na.growChunk(); err != nil {
			return block.Invalid, err
		}
	}

	index, err := na.list.Pop()
	if err != nil {
		return block.Invalid, err
	}

	var c counters
	na.counters.Load(&c)
	c.Free--
	na.counters.Store(&c)

	na.stats.AllocCalls++
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] allocate -> %v (total=%d free=%d)\n",
			index, c.Total, c.Free)
	}
	return index, nil
}

// Reallocate resizes a single-block range, which is the identity. Any count
// other than 1 on either side is unsupported.
func (na *NodeAllocator) Reallocate(index block.Index, oldN, newN uint64) (block.Index, error) {
	if oldN != 1 || newN != 1 {
		return block.Invalid, fmt.Errorf("%w: reallocate %d -> %d blocks", ErrUnsupported, oldN, newN)
	}
	return index, nil
}

// Free returns one block to the allocator. The block is not checked against
// the set of live allocations; freeing a foreign or already-free index
// corrupts the list and is the caller's responsibility to avoid. Setting
// BLOCKKIT_CHECK_FREE enables a debug scan that rejects an index already on
// the list.
func (na *NodeAllocator) Free(index block.Index, n uint64) error {
	if n != 1 {
		return fmt.Errorf("%w: free %d blocks", ErrUnsupported, n)
	}
	if checkFree {
		onList, err := na.list.Contains(index)
		if err != nil {
			return err
		}
		if onList {
			return fmt.Errorf("%w: %v", ErrDoubleFree, index)
		}
	}

	if err := na.list.Push(index); err != nil {
		return err
	}

	var c counters
	na.counters.Load(&c)
	c.Free++
	na.counters.Store(&c)

	na.stats.FreeCalls++
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] free %v (total=%d free=%d)\n", index, c.Total, c.Free)
	}
	return nil
}

// growChunk extends the engine by one chunk and pushes the new blocks onto
// the free list in descending order, so the lowest new index is popped
// first and a fresh chunk is consumed in ascending order. Counters are
// committed only after every engine operation succeeded.
func (na *NodeAllocator) growChunk() error {
	base := na.e.Size()
	if err := na.e.Grow(na.chunkSize); err != nil {
		return fmt.Errorf("alloc: grow engine by %d blocks: %w", na.chunkSize, err)
	}
	for i := na.chunkSize; i > 0; i-- {
		if err := na.list.Push(block.New(base + i - 1)); err != nil {
			return fmt.Errorf("alloc: push grown block: %w", err)
		}
	}

	var c counters
	na.counters.Load(&c)
	c.Total += na.chunkSize
	c.Free += na.chunkSize
	na.counters.Store(&c)

	na.stats.GrowCalls++
	na.stats.BlocksGrown += na.chunkSize
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] grow +%d blocks (engine size %d, total=%d free=%d)\n",
			na.chunkSize, na.e.Size(), c.Total, c.Free)
	}
	return nil
}
