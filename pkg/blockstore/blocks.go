package blockstore

import "encoding/binary"

// RawBlock is the on-disk representation of any block: BlockSize bytes,
// native little-endian, packed.
type RawBlock [BlockSize]byte

// Magic reports the tagged-union discriminator stored in the first four
// bytes of every block.
func (b RawBlock) Magic() uint32 {
	return binary.LittleEndian.Uint32(b[0:4])
}

// Superblock is block 0: container-wide metadata.
type Superblock struct {
	VersionMajor uint8
	VersionMinor uint8
	RootIndex    BlockIndex
	MaxSize      BlockIndex
	FreeHead     BlockIndex
}

// Encode packs the superblock into its on-disk layout.
func (s Superblock) Encode() RawBlock {
	var raw RawBlock
	binary.LittleEndian.PutUint32(raw[0:4], MagicSuperblock)
	raw[4] = s.VersionMajor
	raw[5] = s.VersionMinor
	binary.LittleEndian.PutUint32(raw[6:10], uint32(s.RootIndex))
	binary.LittleEndian.PutUint32(raw[10:14], uint32(s.MaxSize))
	binary.LittleEndian.PutUint32(raw[14:18], uint32(s.FreeHead))
	return raw
}

// DecodeSuperblock unpacks and validates a superblock image.
func DecodeSuperblock(raw RawBlock) (Superblock, error) {
	if raw.Magic() != MagicSuperblock {
		return Superblock{}, ErrCorruption
	}
	return Superblock{
		VersionMajor: raw[4],
		VersionMinor: raw[5],
		RootIndex:    BlockIndex(binary.LittleEndian.Uint32(raw[6:10])),
		MaxSize:      BlockIndex(binary.LittleEndian.Uint32(raw[10:14])),
		FreeHead:     BlockIndex(binary.LittleEndian.Uint32(raw[14:18])),
	}, nil
}

// TreeNode is a B+tree internal or leaf node.
type TreeNode struct {
	Leaf     bool
	KeyCount uint16
	Ptrs     [Order]BlockIndex
	Keys     [MaxKeys]Key
}

// Encode packs a tree node into its on-disk layout.
func (n TreeNode) Encode() RawBlock {
	var raw RawBlock
	binary.LittleEndian.PutUint32(raw[0:4], MagicTreeNode)
	if n.Leaf {
		binary.LittleEndian.PutUint16(raw[4:6], 1)
	}
	binary.LittleEndian.PutUint16(raw[6:8], n.KeyCount)
	off := 8
	for i := 0; i < Order; i++ {
		binary.LittleEndian.PutUint32(raw[off:off+4], uint32(n.Ptrs[i]))
		off += 4
	}
	for i := 0; i < MaxKeys; i++ {
		copy(raw[off:off+KeySize], n.Keys[i][:])
		off += KeySize
	}
	return raw
}

// DecodeTreeNode unpacks and validates a tree node image.
func DecodeTreeNode(raw RawBlock) (TreeNode, error) {
	if raw.Magic() != MagicTreeNode {
		return TreeNode{}, ErrCorruption
	}
	var n TreeNode
	n.Leaf = binary.LittleEndian.Uint16(raw[4:6]) != 0
	n.KeyCount = binary.LittleEndian.Uint16(raw[6:8])
	off := 8
	for i := 0; i < Order; i++ {
		n.Ptrs[i] = BlockIndex(binary.LittleEndian.Uint32(raw[off : off+4]))
		off += 4
	}
	for i := 0; i < MaxKeys; i++ {
		copy(n.Keys[i][:], raw[off:off+KeySize])
		off += KeySize
	}
	return n, nil
}

// DataNode anchors a leaf key's auxiliary state: either an inline/overflow
// inode list, or (when Synonym) an alias target name.
type DataNode struct {
	InodeCount int16
	Flags      uint16
	Subkeys    BlockIndex
	Payload    [PayloadBytes]byte
	NextInodes BlockIndex
}

// IsSynonym reports whether this data block is an alias rather than a
// subtree anchor.
func (d DataNode) IsSynonym() bool {
	return d.Flags&DataFlagSynonym != 0
}

// InlineInodes decodes the payload as an inode list, returning up to
// MaxInlineInodes entries (the rest, if any, live in the overflow chain).
func (d DataNode) InlineInodes() []Inode {
	n := int(d.InodeCount)
	if n > MaxInlineInodes {
		n = MaxInlineInodes
	}
	if n < 0 {
		n = 0
	}
	out := make([]Inode, n)
	for i := 0; i < n; i++ {
		out[i] = Inode(binary.LittleEndian.Uint32(d.Payload[i*ptrSize : i*ptrSize+ptrSize]))
	}
	return out
}

// SetInlineInodes stores up to MaxInlineInodes inode entries in the
// payload area, zeroing the remainder.
func (d *DataNode) SetInlineInodes(inodes []Inode) {
	d.Flags &^= DataFlagSynonym
	var buf [PayloadBytes]byte
	for i, ino := range inodes {
		if i >= MaxInlineInodes {
			break
		}
		binary.LittleEndian.PutUint32(buf[i*ptrSize:i*ptrSize+ptrSize], uint32(ino))
	}
	d.Payload = buf
}

// SynonymTarget decodes the payload as a NUL-terminated alias target.
func (d DataNode) SynonymTarget() string {
	return string(cstring(d.Payload[:]))
}

// SetSynonymTarget stores an alias target name in the payload area and
// sets the Synonym flag.
func (d *DataNode) SetSynonymTarget(target string) {
	d.Flags |= DataFlagSynonym
	var buf [PayloadBytes]byte
	n := copy(buf[:], target)
	if n < PayloadBytes {
		buf[n] = 0
	}
	d.Payload = buf
}

// Encode packs a data node into its on-disk layout.
func (d DataNode) Encode() RawBlock {
	var raw RawBlock
	binary.LittleEndian.PutUint32(raw[0:4], MagicDataNode)
	binary.LittleEndian.PutUint16(raw[4:6], uint16(d.InodeCount))
	binary.LittleEndian.PutUint16(raw[6:8], d.Flags)
	binary.LittleEndian.PutUint32(raw[8:12], uint32(d.Subkeys))
	copy(raw[12:12+PayloadBytes], d.Payload[:])
	binary.LittleEndian.PutUint32(raw[12+PayloadBytes:16+PayloadBytes], uint32(d.NextInodes))
	return raw
}

// DecodeDataNode unpacks and validates a data node image.
func DecodeDataNode(raw RawBlock) (DataNode, error) {
	if raw.Magic() != MagicDataNode {
		return DataNode{}, ErrCorruption
	}
	var d DataNode
	d.InodeCount = int16(binary.LittleEndian.Uint16(raw[4:6]))
	d.Flags = binary.LittleEndian.Uint16(raw[6:8])
	d.Subkeys = BlockIndex(binary.LittleEndian.Uint32(raw[8:12]))
	copy(d.Payload[:], raw[12:12+PayloadBytes])
	d.NextInodes = BlockIndex(binary.LittleEndian.Uint32(raw[12+PayloadBytes : 16+PayloadBytes]))
	return d, nil
}

// InodeBlock is an overflow block chained from a data node's NextInodes
// field once a key's inode list exceeds MaxInlineInodes entries.
type InodeBlock struct {
	Count      int16
	Inodes     [MaxOverflowInodes]Inode
	NextInodes BlockIndex
}

// Encode packs an inode overflow block into its on-disk layout.
func (ib InodeBlock) Encode() RawBlock {
	var raw RawBlock
	binary.LittleEndian.PutUint32(raw[0:4], MagicInodeBlock)
	binary.LittleEndian.PutUint16(raw[4:6], uint16(ib.Count))
	off := 8
	for i := 0; i < MaxOverflowInodes; i++ {
		binary.LittleEndian.PutUint32(raw[off:off+4], uint32(ib.Inodes[i]))
		off += 4
	}
	binary.LittleEndian.PutUint32(raw[off:off+4], uint32(ib.NextInodes))
	return raw
}

// DecodeInodeBlock unpacks and validates an inode overflow block image.
func DecodeInodeBlock(raw RawBlock) (InodeBlock, error) {
	if raw.Magic() != MagicInodeBlock {
		return InodeBlock{}, ErrCorruption
	}
	var ib InodeBlock
	ib.Count = int16(binary.LittleEndian.Uint16(raw[4:6]))
	off := 8
	for i := 0; i < MaxOverflowInodes; i++ {
		ib.Inodes[i] = Inode(binary.LittleEndian.Uint32(raw[off : off+4]))
		off += 4
	}
	ib.NextInodes = BlockIndex(binary.LittleEndian.Uint32(raw[off : off+4]))
	return ib, nil
}

// FreeBlock is a node in the free list.
type FreeBlock struct {
	Next BlockIndex
}

// Encode packs a free block into its on-disk layout.
func (f FreeBlock) Encode() RawBlock {
	var raw RawBlock
	binary.LittleEndian.PutUint32(raw[0:4], MagicFreeBlock)
	binary.LittleEndian.PutUint32(raw[4:8], uint32(f.Next))
	return raw
}

// DecodeFreeBlock unpacks and validates a free block image.
func DecodeFreeBlock(raw RawBlock) (FreeBlock, error) {
	if raw.Magic() != MagicFreeBlock {
		return FreeBlock{}, ErrCorruption
	}
	return FreeBlock{Next: BlockIndex(binary.LittleEndian.Uint32(raw[4:8]))}, nil
}
