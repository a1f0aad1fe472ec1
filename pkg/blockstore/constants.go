// Package blockstore implements the fixed-size-block container that backs
// the tag-tree storage engine: a superblock, a free-list allocator, grow-only
// block I/O and an optional direct-mapped write-back cache.
package blockstore

import "bytes"

const (
	// BlockSize is the fixed size in bytes of every block in the container,
	// including the superblock.
	BlockSize = 512

	// KeySize is the maximum length, including the implicit null
	// terminator, of a tree key.
	KeySize = 33

	// DefaultBlocks is the number of non-superblock blocks a freshly
	// formatted container starts with (one root leaf plus DefaultBlocks-1
	// free blocks).
	DefaultBlocks = 512

	// CacheMaxBytes bounds the size of the optional write-back cache.
	CacheMaxBytes = 1 << 20 // 1 MiB

	// CacheMaxWrites is the number of dirty writes a cache slot tolerates
	// before it is force-flushed to disk.
	CacheMaxWrites = 5

	ptrSize = 4
	u16Size = 2
	u32Size = 4

	// Order is the branching factor of every tree node: the maximum number
	// of child/sibling pointers a node can hold.
	Order = (BlockSize-2*u16Size-u32Size)/(ptrSize+KeySize) + 1

	// MaxKeys is the maximum number of keys a node may hold (Order-1).
	MaxKeys = Order - 1

	// MinKeys is the minimum number of keys a non-root node may hold
	// before it is considered underflowing: floor((Order-1)/2), so that an
	// internal split's smaller half (Order-mid-1 keys) never starts out
	// underflowing and a merge of two minimal nodes never exceeds MaxKeys.
	MinKeys = (Order - 1) / 2

	dataHeaderSize = u32Size + u16Size + u16Size + ptrSize + ptrSize

	// MaxInlineInodes is the number of inode entries a data block can
	// store directly, before overflowing into a chained inode block.
	MaxInlineInodes = (BlockSize - dataHeaderSize) / ptrSize

	// PayloadBytes is the size, in bytes, of a data block's payload area -
	// shared between the inline inode list and the synonym target string.
	PayloadBytes = MaxInlineInodes * ptrSize

	inodeHeaderSize = u32Size + u16Size + u16Size + ptrSize

	// MaxOverflowInodes is the number of inode entries a chained overflow
	// inode block can store.
	MaxOverflowInodes = (BlockSize - inodeHeaderSize) / ptrSize
)

// Magic numbers identifying each on-disk block kind.
const (
	MagicSuperblock uint32 = 0x00BAB10C
	MagicTreeNode   uint32 = 0xCE11B10C
	MagicDataNode   uint32 = 0xDA7AB10C
	MagicFreeBlock  uint32 = 0xF1EEB10C
	MagicInodeBlock uint32 = 0x10DEB10C
)

// DataFlagSynonym marks a data block whose payload holds the name of a
// synonym target; such a block's Subkeys field is not a subkeys tree root.
const DataFlagSynonym uint16 = 0x01

// VersionMajor/VersionMinor are the on-disk format version this package
// reads and writes.
const (
	VersionMajor = 1
	VersionMinor = 0
)

// BlockIndex addresses a block within the container. Zero is reserved as
// the "no block" sentinel everywhere except as the superblock's own index.
type BlockIndex uint32

// Inode identifies a tagged filesystem entry. Sized to match the original
// format's fileptr-width inode slots.
type Inode uint32

// Key is a fixed-width, null-padded tree key.
type Key [KeySize]byte

// NewKey builds a Key from a string, truncating to KeySize-1 bytes and
// null-padding the remainder.
func NewKey(s string) Key {
	var k Key
	n := copy(k[:KeySize-1], s)
	for i := n; i < KeySize; i++ {
		k[i] = 0
	}
	return k
}

// String returns the logical (NUL-terminated) contents of the key.
func (k Key) String() string {
	return string(cstring(k[:]))
}

func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// CompareKeys compares two keys the way the original C implementation's
// strncmp(a, b, KEY_SIZE) does: two keys that differ only in the bytes
// following the first NUL are equal.
func CompareKeys(a, b Key) int {
	return bytes.Compare(cstring(a[:]), cstring(b[:]))
}
