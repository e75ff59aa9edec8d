// Package block defines the strongly typed address of one fixed-size block
// in an engine.
//
// An Index is either valid, addressing a block in [0, engine.Size()), or the
// invalid sentinel meaning "no block". The sentinel's raw bit pattern is all
// ones, and it orders before every valid index: comparisons are defined on
// (value + 1), which wraps the sentinel to zero.
package block

import "strconv"

// Index addresses one block. The zero value is the invalid sentinel.
//
// The stored word is biased by one (stored = value + 1). This makes the zero
// value invalid and turns the (value + 1) ordering rule into a plain compare
// of the stored words.
type Index struct {
	v uint64
}

// Invalid is the "no block" sentinel. Its raw value is all ones.
var Invalid = Index{}

// New returns the index with the given raw value. The all-ones value yields
// the invalid sentinel.
func New(value uint64) Index {
	return Index{v: value + 1}
}

// Value returns the raw 64-bit value. For the invalid sentinel this is the
// all-ones pattern.
func (i Index) Value() uint64 {
	return i.v - 1
}

// Valid reports whether the index addresses a block.
func (i Index) Valid() bool {
	return i.v != 0
}

// Add returns the index advanced by n blocks. It panics when called on the
// invalid sentinel or when the result would not be representable. These are
// contract violations, not runtime conditions.
func (i Index) Add(n uint64) Index {
	if !i.Valid() {
		panic("block: arithmetic on invalid index")
	}
	if n > ^uint64(0)-i.v {
		panic("block: index overflow")
	}
	return Index{v: i.v + n}
}

// Sub returns the index moved back by n blocks. It panics when called on the
// invalid sentinel or when the result would underflow.
func (i Index) Sub(n uint64) Index {
	if !i.Valid() {
		panic("block: arithmetic on invalid index")
	}
	if n >= i.v {
		panic("block: index underflow")
	}
	return Index{v: i.v - n}
}

// Compare orders two indices. The invalid sentinel orders before every valid
// index. Returns -1, 0 or 1.
func (i Index) Compare(o Index) int {
	switch {
	case i.v < o.v:
		return -1
	case i.v > o.v:
		return 1
	default:
		return 0
	}
}

// Less reports whether i orders before o.
func (i Index) Less(o Index) bool {
	return i.v < o.v
}

// String renders the index as its decimal value, or "INVALID" for the
// sentinel.
func (i Index) String() string {
	if !i.Valid() {
		return "INVALID"
	}
	return strconv.FormatUint(i.Value(), 10)
}
