// Package alloc provides free-space management on top of an engine: a
// self-hosting free list of block indices and a single-block node allocator
// built on it.
//
// The free list stores its own metadata inside the freed blocks, so freeing
// storage costs no extra allocation. The node allocator hands out one block
// at a time, growing the engine in chunks when the list runs dry, and keeps
// its accounting in a small persisted anchor.
package alloc
