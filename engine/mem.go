package engine

import (
	"fmt"
	"math"

	"github.com/joshuapare/blockkit/block"
)

// MemEngine is the heap-resident backend. It exists to test engine-consuming
// components without real file I/O and behaves exactly like the file engine
// for every operation except actual persistence: dirty and flush are pure
// bookkeeping, and all content is lost when the engine is closed.
type MemEngine struct {
	blockSize int
	size      uint64
	slabs     []memSlab
	pins      pinTable
	closed    bool
}

// memSlab is the storage added by one Grow call. Slabs are never moved or
// reallocated, so pinned buffers stay valid across later growth.
type memSlab struct {
	start uint64 // first block index covered by this slab
	buf   []byte
}

// NewMem creates a heap-resident engine with the given block size.
func NewMem(blockSize int) (*MemEngine, error) {
	if !validBlockSize(blockSize) {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}
	return &MemEngine{
		blockSize: blockSize,
		pins:      newPinTable(),
	}, nil
}

// BlockSize returns the fixed block size in bytes.
func (e *MemEngine) BlockSize() int { return e.blockSize }

// Size returns the current number of addressable blocks.
func (e *MemEngine) Size() uint64 { return e.size }

// Pinned reports whether the block currently has a live pin.
func (e *MemEngine) Pinned(index block.Index) bool { return e.pins.pinned(index) }

// Grow extends the addressable range by n zeroed blocks.
func (e *MemEngine) Grow(n uint64) error {
	if e.closed {
		return ErrClosed
	}
	if n == 0 {
		return ErrGrowCount
	}
	maxBlocks := uint64(math.MaxInt) / uint64(e.blockSize)
	if n > maxBlocks-e.size {
		return fmt.Errorf("%w: size %d + %d blocks", ErrGrowRange, e.size, n)
	}

	e.slabs = append(e.slabs, memSlab{
		start: e.size,
		buf:   make([]byte, n*uint64(e.blockSize)),
	})
	e.size += n
	return nil
}

// Pin makes the block resident and returns its buffer and cookie. The
// buffer is the slab storage itself, so current content is always visible
// regardless of readContent.
func (e *MemEngine) Pin(index block.Index, _ bool) ([]byte, Cookie, error) {
	e.checkIndex(index)
	if s := e.pins.acquire(index); s != nil {
		return s.buf, s.cookie, nil
	}
	s := e.pins.insert(index, e.blockBuf(index))
	return s.buf, s.cookie, nil
}

// Unpin releases one pin of the block.
func (e *MemEngine) Unpin(index block.Index, cookie Cookie) {
	e.pins.release(index, cookie)
}

// MarkDirty flags the pinned block as modified. Bookkeeping only: the pin
// buffer is the backing storage.
func (e *MemEngine) MarkDirty(index block.Index, cookie Cookie) {
	e.pins.lookup(index, cookie).dirty = true
}

// Flush clears the block's dirty flag. There is no backing store to write.
func (e *MemEngine) Flush(index block.Index, cookie Cookie) error {
	if e.closed {
		return ErrClosed
	}
	e.pins.lookup(index, cookie).dirty = false
	return nil
}

// FlushAll clears all dirty flags.
func (e *MemEngine) FlushAll() error {
	if e.closed {
		return ErrClosed
	}
	e.pins.clearDirty()
	return nil
}

// Close discards all content. Closing with outstanding pins panics.
func (e *MemEngine) Close() error {
	if e.closed {
		return nil
	}
	if n := e.pins.count(); n != 0 {
		panic(fmt.Sprintf("engine: close with %d pinned blocks", n))
	}
	e.slabs = nil
	e.size = 0
	e.closed = true
	return nil
}

// blockBuf returns the slab-backed buffer of the given block.
func (e *MemEngine) blockBuf(index block.Index) []byte {
	// Binary search for the slab covering the block.
	v := index.Value()
	lo, hi := 0, len(e.slabs)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		s := &e.slabs[mid]
		end := s.start + uint64(len(s.buf))/uint64(e.blockSize)
		switch {
		case v < s.start:
			hi = mid - 1
		case v >= end:
			lo = mid + 1
		default:
			off := (v - s.start) * uint64(e.blockSize)
			return s.buf[off : off+uint64(e.blockSize)]
		}
	}
	panic(fmt.Sprintf("engine: no slab for block %v", index))
}

func (e *MemEngine) checkIndex(index block.Index) {
	if !index.Valid() || index.Value() >= e.size {
		panic(fmt.Sprintf("engine: pin of out-of-range block %v (size %d)", index, e.size))
	}
}
