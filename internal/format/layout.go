package format

// On-disk layout of a free-list node. A node occupies exactly one block:
//
//	offset 0   next index (8 bytes, raw u64, all-ones = no next node)
//	offset 8   entry count (4 bytes)
//	offset 12  reserved (4 bytes, zero)
//	offset 16  entry slots, 8 bytes each, up to ListNodeCapacity(blockSize)
const (
	// ListNodeNextOffset is the offset of the next-node link.
	ListNodeNextOffset = 0

	// ListNodeCountOffset is the offset of the used-entry count.
	ListNodeCountOffset = 8

	// ListNodeEntriesOffset is the offset of the first entry slot.
	ListNodeEntriesOffset = 16

	// ListEntrySize is the size of one entry slot (a raw block index).
	ListEntrySize = 8
)

// ListNodeCapacity returns the number of entry slots that fit in one
// free-list node for the given block size. Zero means the block size is
// too small to host a node.
func ListNodeCapacity(blockSize int) int {
	if blockSize < ListNodeEntriesOffset+ListEntrySize {
		return 0
	}
	return (blockSize - ListNodeEntriesOffset) / ListEntrySize
}
