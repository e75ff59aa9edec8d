package engine

import "errors"

var (
	// ErrBlockSize indicates a block size that is not a positive power of two.
	ErrBlockSize = errors.New("engine: block size must be a positive power of two")

	// ErrGrowCount indicates a Grow call with a zero block count.
	ErrGrowCount = errors.New("engine: grow count must be positive")

	// ErrGrowRange indicates a Grow call that would overflow the addressable range.
	ErrGrowRange = errors.New("engine: grow exceeds addressable range")

	// ErrFileSize indicates a backing file whose length is not a multiple of the block size.
	ErrFileSize = errors.New("engine: file size is not a multiple of the block size")

	// ErrClosed indicates an operation on a closed engine.
	ErrClosed = errors.New("engine: engine is closed")
)
