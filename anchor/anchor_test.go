package anchor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/blockkit/internal/format"
)

// memRegion is a plain in-memory storage region for tests.
type memRegion struct {
	buf   []byte
	dirty int
}

func (r *memRegion) Bytes() []byte { return r.buf }
func (r *memRegion) MarkDirty()    { r.dirty++ }

// pair is a small fixed-layout test value.
type pair struct {
	A, B uint64
}

func (p *pair) AnchorSize() int { return 16 }

func (p *pair) MarshalAnchor(b []byte) {
	format.PutU64(b, 0, p.A)
	format.PutU64(b, 8, p.B)
}

func (p *pair) UnmarshalAnchor(b []byte) {
	p.A = format.ReadU64(b, 0)
	p.B = format.ReadU64(b, 8)
}

func TestHandleLoadStore(t *testing.T) {
	r := &memRegion{buf: make([]byte, 64)}
	h := New(r, 8)

	h.Store(&pair{A: 7, B: 9})
	require.Equal(t, 1, r.dirty, "store must mark the region dirty")

	var got pair
	h.Load(&got)
	require.Equal(t, pair{A: 7, B: 9}, got)

	// Load must not touch the dirty state.
	require.Equal(t, 1, r.dirty)

	// The value sits at the handle's offset, not at the region start.
	require.Equal(t, uint64(7), format.ReadU64(r.buf, 8))
	require.Equal(t, uint64(9), format.ReadU64(r.buf, 16))
}

func TestHandleSlice(t *testing.T) {
	r := &memRegion{buf: make([]byte, 64)}
	h := New(r, 8)

	h.Store(&pair{A: 1, B: 2})

	nested := h.Slice(8)
	require.Equal(t, 16, nested.Offset())

	var got pair
	nested.Load(&got)
	require.Equal(t, uint64(2), got.A)
}

func TestHandleOutOfRange(t *testing.T) {
	r := &memRegion{buf: make([]byte, 16)}
	require.Panics(t, func() { New(r, 8).Store(&pair{}) })
	require.Panics(t, func() { New(r, -1).Load(&pair{}) })
}

func TestHandleValid(t *testing.T) {
	require.False(t, Handle{}.Valid())
	require.True(t, New(&memRegion{buf: make([]byte, 16)}, 0).Valid())
}
