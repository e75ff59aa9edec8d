//go:build !linux && !darwin

package engine

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/joshuapare/blockkit/block"
)

// FileEngine is the file-backed engine for platforms without the mmap path.
// The file image lives in per-grow heap slabs; dirty blocks are written back
// with WriteAt on flush. Behavior matches the mmap engine, only the I/O
// mechanism differs.
type FileEngine struct {
	f         *os.File
	path      string
	blockSize int
	size      uint64
	slabs     []memSlab

	pins        pinTable
	dirtyBlocks map[block.Index]struct{}
	closed      bool
}

// OpenFile opens (or creates) the store at path with the given block size.
// An existing file must have a length that is a multiple of the block size.
func OpenFile(path string, blockSize int) (*FileEngine, error) {
	if !validBlockSize(blockSize) {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size()%int64(blockSize) != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s has %d bytes, block size %d",
			ErrFileSize, path, st.Size(), blockSize)
	}

	e := &FileEngine{
		f:           f,
		path:        path,
		blockSize:   blockSize,
		size:        uint64(st.Size()) / uint64(blockSize),
		pins:        newPinTable(),
		dirtyBlocks: make(map[block.Index]struct{}),
	}

	if st.Size() > 0 {
		buf := make([]byte, st.Size())
		if _, err := io.ReadFull(f, buf); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("engine: read %s: %w", path, err)
		}
		e.slabs = append(e.slabs, memSlab{start: 0, buf: buf})
	}
	return e, nil
}

// Path returns the backing file's path.
func (e *FileEngine) Path() string { return e.path }

// BlockSize returns the fixed block size in bytes.
func (e *FileEngine) BlockSize() int { return e.blockSize }

// Size returns the current number of addressable blocks.
func (e *FileEngine) Size() uint64 { return e.size }

// Pinned reports whether the block currently has a live pin.
func (e *FileEngine) Pinned(index block.Index) bool { return e.pins.pinned(index) }

// Grow extends the file and the in-memory image by n zeroed blocks.
func (e *FileEngine) Grow(n uint64) error {
	if e.closed {
		return ErrClosed
	}
	if n == 0 {
		return ErrGrowCount
	}
	maxBlocks := uint64(math.MaxInt64) / uint64(e.blockSize)
	if n > maxBlocks-e.size {
		return fmt.Errorf("%w: size %d + %d blocks", ErrGrowRange, e.size, n)
	}

	newLen := int64(e.size+n) * int64(e.blockSize)
	if err := e.f.Truncate(newLen); err != nil {
		return fmt.Errorf("engine: grow %s to %d bytes: %w", e.path, newLen, err)
	}
	e.slabs = append(e.slabs, memSlab{
		start: e.size,
		buf:   make([]byte, n*uint64(e.blockSize)),
	})
	e.size += n
	return nil
}

// Pin makes the block resident and returns its buffer and cookie.
func (e *FileEngine) Pin(index block.Index, _ bool) ([]byte, Cookie, error) {
	e.checkIndex(index)
	if s := e.pins.acquire(index); s != nil {
		return s.buf, s.cookie, nil
	}
	s := e.pins.insert(index, e.blockBuf(index))
	return s.buf, s.cookie, nil
}

// Unpin releases one pin of the block.
func (e *FileEngine) Unpin(index block.Index, cookie Cookie) {
	e.pins.release(index, cookie)
}

// MarkDirty flags the pinned block as modified and records it for the next
// full flush.
func (e *FileEngine) MarkDirty(index block.Index, cookie Cookie) {
	s := e.pins.lookup(index, cookie)
	if !s.dirty {
		s.dirty = true
		e.dirtyBlocks[index] = struct{}{}
	}
}

// Flush writes the pinned block back to the file if it is dirty.
func (e *FileEngine) Flush(index block.Index, cookie Cookie) error {
	if e.closed {
		return ErrClosed
	}
	s := e.pins.lookup(index, cookie)
	if !s.dirty {
		return nil
	}
	if err := e.writeBlock(index); err != nil {
		return err
	}
	s.dirty = false
	delete(e.dirtyBlocks, index)
	return nil
}

// FlushAll writes every dirty block back to the file and syncs it.
func (e *FileEngine) FlushAll() error {
	if e.closed {
		return ErrClosed
	}
	if len(e.dirtyBlocks) == 0 {
		return nil
	}
	for index := range e.dirtyBlocks {
		if err := e.writeBlock(index); err != nil {
			return err
		}
	}
	if err := e.f.Sync(); err != nil {
		return fmt.Errorf("engine: sync %s: %w", e.path, err)
	}
	e.dirtyBlocks = make(map[block.Index]struct{})
	e.pins.clearDirty()
	return nil
}

// Close flushes dirty content and closes the file. Closing with outstanding
// pins panics.
func (e *FileEngine) Close() error {
	if e.closed {
		return nil
	}
	if n := e.pins.count(); n != 0 {
		panic(fmt.Sprintf("engine: close with %d pinned blocks", n))
	}

	err := e.FlushAll()
	e.slabs = nil
	e.closed = true

	if closeErr := e.f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (e *FileEngine) writeBlock(index block.Index) error {
	off := int64(index.Value()) * int64(e.blockSize)
	if _, err := e.f.WriteAt(e.blockBuf(index), off); err != nil {
		return fmt.Errorf("engine: write block %v to %s: %w", index, e.path, err)
	}
	return nil
}

// blockBuf returns the slab-backed buffer of the given block.
func (e *FileEngine) blockBuf(index block.Index) []byte {
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

func (e *FileEngine) checkIndex(index block.Index) {
	if !index.Valid() || index.Value() >= e.size {
		panic(fmt.Sprintf("engine: pin of out-of-range block %v (size %d)", index, e.size))
	}
}
