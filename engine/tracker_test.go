package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerCoalesceEmpty(t *testing.T) {
	tr := newRangeTracker()
	require.Nil(t, tr.coalesce())
	require.True(t, tr.empty())
}

func TestTrackerPageAlignment(t *testing.T) {
	tr := newRangeTracker()
	tr.add(100, 50)

	got := tr.coalesce()
	require.Len(t, got, 1)
	require.Equal(t, int64(0), got[0].off)
	require.Equal(t, int64(4096), got[0].n)
}

func TestTrackerMergesOverlappingAndAdjacent(t *testing.T) {
	tr := newRangeTracker()
	// Three ranges on the same page, plus an adjacent page, out of order.
	tr.add(8192, 100)
	tr.add(300, 10)
	tr.add(4000, 200) // crosses into the second page
	tr.add(500, 20)

	got := tr.coalesce()
	require.Len(t, got, 2)
	require.Equal(t, byteRange{off: 0, n: 8192}, got[0])
	require.Equal(t, byteRange{off: 8192, n: 4096}, got[1])
}

func TestTrackerDisjointRangesStaySplit(t *testing.T) {
	tr := newRangeTracker()
	tr.add(0, 64)
	tr.add(1 << 20, 64)

	got := tr.coalesce()
	require.Len(t, got, 2)
	require.Equal(t, int64(0), got[0].off)
	require.Equal(t, int64(1<<20), got[1].off)
}

func TestTrackerReset(t *testing.T) {
	tr := newRangeTracker()
	tr.add(0, 10)
	require.False(t, tr.empty())
	tr.reset()
	require.True(t, tr.empty())
	require.Nil(t, tr.coalesce())
}
