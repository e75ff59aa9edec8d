package engine

import "sort"

const (
	// rangeCapacity is the pre-allocated capacity for dirty ranges.
	rangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// byteRange is a dirty byte range in absolute file offsets.
type byteRange struct {
	off int64
	n   int64
}

// rangeTracker accumulates the byte ranges of dirtied blocks so a full flush
// can write them back as few, page-aligned syncs.
//
// NOT thread-safe; the owning engine provides the single-threaded contract.
type rangeTracker struct {
	ranges   []byteRange
	pageSize int64
}

func newRangeTracker() rangeTracker {
	return rangeTracker{
		ranges:   make([]byteRange, 0, rangeCapacity),
		pageSize: standardPageSize,
	}
}

// add records a dirty range. Alignment and merging happen at flush time;
// this only appends to a slice.
func (t *rangeTracker) add(off, n int64) {
	t.ranges = append(t.ranges, byteRange{off: off, n: n})
}

// reset drops all tracked ranges.
func (t *rangeTracker) reset() {
	t.ranges = t.ranges[:0]
}

// empty reports whether no dirty range is pending.
func (t *rangeTracker) empty() bool {
	return len(t.ranges) == 0
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ranges. Returns a new slice of non-overlapping, sorted ranges.
func (t *rangeTracker) coalesce() []byteRange {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]byteRange, len(t.ranges))
	for i, r := range t.ranges {
		// Round start down and end up to page boundaries.
		start := (r.off / t.pageSize) * t.pageSize
		end := r.off + r.n
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		aligned[i] = byteRange{off: start, n: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].off < aligned[j].off
	})

	merged := make([]byteRange, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.off <= current.off+current.n {
			end := current.off + current.n
			if nextEnd := next.off + next.n; nextEnd > end {
				end = nextEnd
			}
			current.n = end - current.off
		} else {
			merged = append(merged, current)
			current = next
		}
	}
	merged = append(merged, current)

	return merged
}
