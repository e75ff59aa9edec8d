package alloc

import "errors"

var (
	// ErrUnsupported indicates an allocation, reallocation or free with a
	// block count other than 1.
	ErrUnsupported = errors.New("alloc: only single-block operations are supported")

	// ErrEmpty indicates a pop from an empty free list.
	ErrEmpty = errors.New("alloc: free list is empty")

	// ErrChunkSize indicates an invalid chunk size.
	ErrChunkSize = errors.New("alloc: chunk size must be at least 1")

	// ErrBlockTooSmall indicates a block size too small to host a free-list node.
	ErrBlockTooSmall = errors.New("alloc: block size too small for a free-list node")

	// ErrDoubleFree indicates a free of a block that is already on the free
	// list. Only reported when the debug free check is enabled.
	ErrDoubleFree = errors.New("alloc: block is already free")
)
