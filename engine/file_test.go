package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/blockkit/block"
)

func newTestFile(t *testing.T, blockSize int) *FileEngine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.blk")
	e, err := OpenFile(path, blockSize)
	require.NoError(t, err)
	return e
}

func TestOpenFileValidatesBlockSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.blk")
	_, err := OpenFile(path, 1000)
	require.ErrorIs(t, err, ErrBlockSize)
}

func TestOpenFileRejectsTornFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.blk")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := OpenFile(path, 64)
	require.ErrorIs(t, err, ErrFileSize)
}

func TestFileGrowExtendsFile(t *testing.T) {
	e := newTestFile(t, 512)
	defer e.Close()

	require.Equal(t, uint64(0), e.Size())
	require.ErrorIs(t, e.Grow(0), ErrGrowCount)

	require.NoError(t, e.Grow(4))
	require.Equal(t, uint64(4), e.Size())

	st, err := os.Stat(e.Path())
	require.NoError(t, err)
	require.Equal(t, int64(4*512), st.Size())
}

func TestFileFreshBlocksAreZero(t *testing.T) {
	e := newTestFile(t, 512)
	defer e.Close()
	require.NoError(t, e.Grow(4))

	for i := uint64(0); i < 4; i++ {
		buf, cookie, err := e.Pin(block.New(i), false)
		require.NoError(t, err)
		for off, b := range buf {
			require.Zero(t, b, "block %d byte %d", i, off)
		}
		e.Unpin(block.New(i), cookie)
	}
}

func TestFilePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.blk")

	e, err := OpenFile(path, 256)
	require.NoError(t, err)
	require.NoError(t, e.Grow(8))

	for i := uint64(0); i < 8; i++ {
		buf, cookie, pinErr := e.Pin(block.New(i), false)
		require.NoError(t, pinErr)
		for j := range buf {
			buf[j] = byte(i + 1)
		}
		e.MarkDirty(block.New(i), cookie)
		e.Unpin(block.New(i), cookie)
	}
	require.NoError(t, e.FlushAll())
	require.NoError(t, e.Close())

	// Reopen and verify all content survived.
	e2, err := OpenFile(path, 256)
	require.NoError(t, err)
	defer e2.Close()
	require.Equal(t, uint64(8), e2.Size())

	for i := uint64(0); i < 8; i++ {
		buf, cookie, pinErr := e2.Pin(block.New(i), true)
		require.NoError(t, pinErr)
		for j := range buf {
			require.Equal(t, byte(i+1), buf[j], "block %d byte %d", i, j)
		}
		e2.Unpin(block.New(i), cookie)
	}
}

func TestFilePinnedBufferSurvivesGrow(t *testing.T) {
	e := newTestFile(t, 512)
	defer e.Close()
	require.NoError(t, e.Grow(1))

	buf, cookie, err := e.Pin(block.New(0), false)
	require.NoError(t, err)
	buf[0] = 0x5A
	e.MarkDirty(block.New(0), cookie)

	// Growing while a block is pinned must not invalidate the buffer.
	require.NoError(t, e.Grow(1000))
	buf[1] = 0x5B
	require.Equal(t, byte(0x5A), buf[0])

	e.Unpin(block.New(0), cookie)
	require.NoError(t, e.FlushAll())

	buf2, c2, err := e.Pin(block.New(0), true)
	require.NoError(t, err)
	require.Equal(t, byte(0x5A), buf2[0])
	require.Equal(t, byte(0x5B), buf2[1])
	e.Unpin(block.New(0), c2)
}

func TestFileFlushSingleBlock(t *testing.T) {
	e := newTestFile(t, 512)
	defer e.Close()
	require.NoError(t, e.Grow(2))

	buf, cookie, err := e.Pin(block.New(1), false)
	require.NoError(t, err)
	buf[10] = 0x77
	e.MarkDirty(block.New(1), cookie)
	require.NoError(t, e.Flush(block.New(1), cookie))
	require.NoError(t, e.Flush(block.New(1), cookie), "flush is idempotent")
	e.Unpin(block.New(1), cookie)
}

func TestFileDirtySurvivesUnpinUntilFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.blk")
	e, err := OpenFile(path, 512)
	require.NoError(t, err)
	require.NoError(t, e.Grow(1))

	buf, cookie, err := e.Pin(block.New(0), false)
	require.NoError(t, err)
	buf[0] = 0xEE
	e.MarkDirty(block.New(0), cookie)

	// Unpin while dirty: the write-back obligation outlives the pin.
	e.Unpin(block.New(0), cookie)
	require.NoError(t, e.FlushAll())
	require.NoError(t, e.Close())

	e2, err := OpenFile(path, 512)
	require.NoError(t, err)
	defer e2.Close()
	buf2, c2, err := e2.Pin(block.New(0), true)
	require.NoError(t, err)
	require.Equal(t, byte(0xEE), buf2[0])
	e2.Unpin(block.New(0), c2)
}

func TestFileEngineUsableAfterFailedGrow(t *testing.T) {
	e := newTestFile(t, 512)
	defer e.Close()
	require.NoError(t, e.Grow(2))

	require.ErrorIs(t, e.Grow(^uint64(0)>>1), ErrGrowRange)
	require.Equal(t, uint64(2), e.Size(), "failed grow must not change size")

	// Unrelated operations keep working.
	buf, cookie, err := e.Pin(block.New(0), false)
	require.NoError(t, err)
	buf[0] = 1
	e.MarkDirty(block.New(0), cookie)
	e.Unpin(block.New(0), cookie)
	require.NoError(t, e.FlushAll())
}
