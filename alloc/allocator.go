package alloc

import "github.com/joshuapare/blockkit/block"

// Allocator is the base contract containers allocate through. Counts are in
// blocks; implementations may restrict the supported counts and report
// unsupported ones with ErrUnsupported.
type Allocator interface {
	// Allocate returns the first index of n freshly allocated blocks.
	Allocate(n uint64) (block.Index, error)

	// Reallocate resizes the range starting at index from oldN to newN
	// blocks and returns the (possibly moved) first index.
	Reallocate(index block.Index, oldN, newN uint64) (block.Index, error)

	// Free returns the n blocks starting at index to the allocator.
	Free(index block.Index, n uint64) error
}
