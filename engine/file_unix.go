//go:build linux || darwin

package engine

import (
	"fmt"
	"math"
	"os"
	"syscall"

	"github.com/joshuapare/blockkit/block"
)

// minRegionSize is the smallest mapping region. Regions are always a
// multiple of both the block size and the OS page size.
const minRegionSize = 1 << 20

// FileEngine is the file-backed engine. The backing file is mapped RW in
// fixed-size regions so the engine can mutate blocks in place.
//
// Grow extends the file with ftruncate and maps new regions lazily; a region
// mapped while the file was shorter is superseded by a longer mapping and
// retired, never unmapped until Close. MAP_SHARED keeps overlapping mappings
// coherent, so buffers handed out from a retired mapping stay valid and see
// all writes.
type FileEngine struct {
	f         *os.File
	path      string
	blockSize int
	size      uint64 // current block count
	fileLen   int64

	regions map[int64][]byte // region start offset -> current mapping
	retired [][]byte         // superseded mappings, kept alive for old pins

	pins   pinTable
	dirty  rangeTracker
	closed bool
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

	return &FileEngine{
		f:         f,
		path:      path,
		blockSize: blockSize,
		size:      uint64(st.Size()) / uint64(blockSize),
		fileLen:   st.Size(),
		regions:   make(map[int64][]byte),
		pins:      newPinTable(),
		dirty:     newRangeTracker(),
	}, nil
}

// Path returns the backing file's path.
func (e *FileEngine) Path() string { return e.path }

// BlockSize returns the fixed block size in bytes.
func (e *FileEngine) BlockSize() int { return e.blockSize }

// Size returns the current number of addressable blocks.
func (e *FileEngine) Size() uint64 { return e.size }

// Pinned reports whether the block currently has a live pin.
func (e *FileEngine) Pinned(index block.Index) bool { return e.pins.pinned(index) }

// Grow extends the file by n blocks. The OS zero-fills the new range.
// Existing mappings and pinned buffers are untouched.
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

	newLen := e.fileLen + int64(n)*int64(e.blockSize)
	if err := e.f.Truncate(newLen); err != nil {
		return fmt.Errorf("engine: grow %s to %d bytes: %w", e.path, newLen, err)
	}
	e.fileLen = newLen
	e.size += n
	return nil
}

// Pin makes the block resident and returns its buffer and cookie. The
// buffer is a view into the shared file mapping, so current content is
// always visible regardless of readContent.
func (e *FileEngine) Pin(index block.Index, _ bool) ([]byte, Cookie, error) {
	e.checkIndex(index)
	if s := e.pins.acquire(index); s != nil {
		return s.buf, s.cookie, nil
	}
	buf, err := e.blockBuf(index)
	if err != nil {
		return nil, 0, err
	}
	s := e.pins.insert(index, buf)
	return s.buf, s.cookie, nil
}

// Unpin releases one pin of the block. The mapping stays in place; dirty
// content was already recorded for the next flush when it was marked.
func (e *FileEngine) Unpin(index block.Index, cookie Cookie) {
	e.pins.release(index, cookie)
}

// MarkDirty flags the pinned block as modified and records its byte range
// for the next full flush.
func (e *FileEngine) MarkDirty(index block.Index, cookie Cookie) {
	s := e.pins.lookup(index, cookie)
	if !s.dirty {
		s.dirty = true
		e.dirty.add(e.blockOff(index), int64(e.blockSize))
	}
}

// Flush syncs the pinned block's pages to the backing file if it is dirty.
func (e *FileEngine) Flush(index block.Index, cookie Cookie) error {
	if e.closed {
		return ErrClosed
	}
	s := e.pins.lookup(index, cookie)
	if !s.dirty {
		return nil
	}
	off := e.blockOff(index)
	if err := e.msyncFileRange(off, off+int64(e.blockSize)); err != nil {
		return fmt.Errorf("engine: flush block %v: %w", index, err)
	}
	s.dirty = false
	return nil
}

// FlushAll syncs every dirty block to the backing file and then syncs the
// file descriptor.
func (e *FileEngine) FlushAll() error {
	if e.closed {
		return ErrClosed
	}
	if e.dirty.empty() {
		return nil
	}

	for _, r := range e.dirty.coalesce() {
		if err := e.msyncFileRange(r.off, r.off+r.n); err != nil {
			return fmt.Errorf("engine: flush %s: %w", e.path, err)
		}
	}
	if err := fdatasync(int(e.f.Fd())); err != nil {
		return fmt.Errorf("engine: sync %s: %w", e.path, err)
	}

	e.dirty.reset()
	e.pins.clearDirty()
	return nil
}

// Close flushes dirty content, unmaps everything and closes the file.
// Closing with outstanding pins panics.
func (e *FileEngine) Close() error {
	if e.closed {
		return nil
	}
	if n := e.pins.count(); n != 0 {
		panic(fmt.Sprintf("engine: close with %d pinned blocks", n))
	}

	err := e.FlushAll()

	for _, m := range e.regions {
		_ = syscall.Munmap(m)
	}
	for _, m := range e.retired {
		_ = syscall.Munmap(m)
	}
	e.regions = nil
	e.retired = nil
	e.closed = true

	if closeErr := e.f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// regionSize returns the mapping granularity: a power of two, at least one
// block and at least one page.
func (e *FileEngine) regionSize() int64 {
	if int64(e.blockSize) > minRegionSize {
		return int64(e.blockSize)
	}
	return minRegionSize
}

// blockOff returns the block's absolute file offset.
func (e *FileEngine) blockOff(index block.Index) int64 {
	return int64(index.Value()) * int64(e.blockSize)
}

// blockBuf returns the mapped buffer of the given block, mapping or
// extending the containing region as needed.
func (e *FileEngine) blockBuf(index block.Index) ([]byte, error) {
	rs := e.regionSize()
	off := e.blockOff(index)
	regOff := off - off%rs

	m := e.regions[regOff]
	need := off + int64(e.blockSize) - regOff
	if m == nil || int64(len(m)) < need {
		length := rs
		if regOff+length > e.fileLen {
			length = e.fileLen - regOff
		}
		data, err := syscall.Mmap(
			int(e.f.Fd()),
			regOff,
			int(length),
			syscall.PROT_READ|syscall.PROT_WRITE,
			syscall.MAP_SHARED,
		)
		if err != nil {
			return nil, fmt.Errorf("engine: map %s region at %d: %w", e.path, regOff, err)
		}
		if m != nil {
			// Old pins may still reference the shorter mapping.
			e.retired = append(e.retired, m)
		}
		e.regions[regOff] = data
		m = data
	}

	return m[off-regOff : need], nil
}

// msyncFileRange syncs the file byte range [start, end) through the region
// mappings covering it. Offsets are page-aligned by the caller or aligned
// here; the range must lie inside mapped regions.
func (e *FileEngine) msyncFileRange(start, end int64) error {
	rs := e.regionSize()
	ps := int64(standardPageSize)
	start -= start % ps
	if end%ps != 0 {
		end += ps - end%ps
	}

	for off := start; off < end; {
		regOff := off - off%rs
		m := e.regions[regOff]
		if m == nil {
			// Region was never mapped; nothing of it was written through us.
			off = regOff + rs
			continue
		}
		segEnd := end
		if mapEnd := regOff + int64(len(m)); segEnd > mapEnd {
			segEnd = mapEnd
		}
		if segEnd > off {
			if err := msyncRange(m, int(off-regOff), int(segEnd-regOff)); err != nil {
				return err
			}
		}
		off = regOff + rs
	}
	return nil
}

func (e *FileEngine) checkIndex(index block.Index) {
	if !index.Valid() || index.Value() >= e.size {
		panic(fmt.Sprintf("engine: pin of out-of-range block %v (size %d)", index, e.size))
	}
}
