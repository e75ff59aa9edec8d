package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/blockkit/block"
)

// The heap engine exists to stand in for the file engine in tests, so any
// identical operation sequence must produce identical sizes, content and
// error behavior on both backends. Persistence across restarts is the only
// permitted difference.

func bothEngines(t *testing.T, blockSize int) map[string]Engine {
	t.Helper()
	mem, err := NewMem(blockSize)
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	file, err := OpenFile(filepath.Join(t.TempDir(), "store.blk"), blockSize)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	return map[string]Engine{"mem": mem, "file": file}
}

func TestBackendEquivalenceWriteReadFlush(t *testing.T) {
	for name, e := range bothEngines(t, 256) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, e.Grow(3))
			require.Equal(t, uint64(3), e.Size())

			// Write a distinct pattern into every block.
			for i := uint64(0); i < 3; i++ {
				buf, cookie, err := e.Pin(block.New(i), false)
				require.NoError(t, err)
				for j := range buf {
					buf[j] = byte(i*31 + uint64(j))
				}
				e.MarkDirty(block.New(i), cookie)
				e.Unpin(block.New(i), cookie)
			}
			require.NoError(t, e.FlushAll())

			// Grow again and verify old content plus zeroed new blocks.
			require.NoError(t, e.Grow(2))
			require.Equal(t, uint64(5), e.Size())

			for i := uint64(0); i < 3; i++ {
				buf, cookie, err := e.Pin(block.New(i), true)
				require.NoError(t, err)
				for j := range buf {
					require.Equal(t, byte(i*31+uint64(j)), buf[j], "block %d byte %d", i, j)
				}
				e.Unpin(block.New(i), cookie)
			}
			for i := uint64(3); i < 5; i++ {
				buf, cookie, err := e.Pin(block.New(i), false)
				require.NoError(t, err)
				for j := range buf {
					require.Zero(t, buf[j], "block %d byte %d", i, j)
				}
				e.Unpin(block.New(i), cookie)
			}
		})
	}
}

func TestBackendEquivalenceErrors(t *testing.T) {
	for name, e := range bothEngines(t, 256) {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, e.Grow(0), ErrGrowCount)
			require.ErrorIs(t, e.Grow(^uint64(0)), ErrGrowRange)
			require.Panics(t, func() { e.Pin(block.New(0), true) }, "empty engine")

			require.NoError(t, e.Grow(1))
			require.Panics(t, func() { e.Pin(block.New(1), true) }, "out of range")
			require.Panics(t, func() { e.Pin(block.Invalid, true) })

			_, cookie, err := e.Pin(block.New(0), true)
			require.NoError(t, err)
			require.Panics(t, func() { e.MarkDirty(block.New(0), cookie+7) }, "stale cookie")
			e.Unpin(block.New(0), cookie)
			require.Panics(t, func() { e.Unpin(block.New(0), cookie) }, "unbalanced unpin")
		})
	}
}

func TestBackendEquivalencePinSharing(t *testing.T) {
	for name, e := range bothEngines(t, 256) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, e.Grow(1))

			buf1, c1, err := e.Pin(block.New(0), true)
			require.NoError(t, err)
			buf2, c2, err := e.Pin(block.New(0), true)
			require.NoError(t, err)
			require.Equal(t, c1, c2)

			buf1[0] = 0xCD
			require.Equal(t, byte(0xCD), buf2[0])

			e.Unpin(block.New(0), c1)
			e.Unpin(block.New(0), c2)
		})
	}
}
