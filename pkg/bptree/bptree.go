// Package bptree implements the on-disk B+tree engine that sits on top of
// a blockstore.Device: key search, insert-with-split and
// delete-with-steal-then-merge, operating on an arbitrary root block so
// the same code serves both the top-level tree and every nested subkeys
// tree (see nested.go).
//
// Unlike an in-memory tree, every node here is a blockstore.TreeNode read
// and written by BlockIndex; there are no pointers, only addresses, and a
// tree is identified by the index of its root block rather than by a Go
// value.
package bptree

import (
	"sort"

	"github.com/ssargent/tagtree/pkg/blockstore"
)

// Tree is a stateless view over a Device: all of its state is the blocks
// themselves, so a single Tree can search/insert/remove against any
// number of independently-rooted trees stored in the same container.
type Tree struct {
	dev *blockstore.Device
}

// New returns a Tree operating against dev.
func New(dev *blockstore.Device) *Tree {
	return &Tree{dev: dev}
}

func (t *Tree) readNode(idx blockstore.BlockIndex) (blockstore.TreeNode, error) {
	raw, err := t.dev.Read(idx)
	if err != nil {
		return blockstore.TreeNode{}, err
	}
	return blockstore.DecodeTreeNode(raw)
}

func (t *Tree) writeNode(idx blockstore.BlockIndex, n blockstore.TreeNode) error {
	return t.dev.Write(idx, n.Encode())
}

// findIndex returns the index of the first key in node strictly greater
// than key, matching tree_find_key: for a leaf, keys[index-1]==key means
// found; for an internal node, ptrs[index] is the child to descend into.
func findIndex(n blockstore.TreeNode, key blockstore.Key) int {
	return sort.Search(int(n.KeyCount), func(i int) bool {
		return blockstore.CompareKeys(n.Keys[i], key) > 0
	})
}

// Search walks from root to the leaf owning key and returns its data
// block, or blockstore.ErrNotFound if no such key exists in this tree.
func (t *Tree) Search(root blockstore.BlockIndex, key blockstore.Key) (blockstore.BlockIndex, error) {
	if root == 0 {
		return 0, blockstore.ErrNotFound
	}
	n, err := t.readNode(root)
	if err != nil {
		return 0, err
	}
	idx := findIndex(n, key)
	if !n.Leaf {
		return t.Search(n.Ptrs[idx], key)
	}
	if idx == 0 || blockstore.CompareKeys(n.Keys[idx-1], key) != 0 {
		return 0, blockstore.ErrNotFound
	}
	return n.Ptrs[idx], nil
}

// Min returns the leftmost key of the tree and its data block.
func (t *Tree) Min(root blockstore.BlockIndex) (blockstore.Key, blockstore.BlockIndex, error) {
	if root == 0 {
		return blockstore.Key{}, 0, blockstore.ErrNotFound
	}
	n, err := t.readNode(root)
	if err != nil {
		return blockstore.Key{}, 0, err
	}
	if !n.Leaf {
		return t.Min(n.Ptrs[0])
	}
	if n.KeyCount == 0 {
		return blockstore.Key{}, 0, blockstore.ErrNotFound
	}
	return n.Keys[0], n.Ptrs[1], nil
}

// CountKeys walks the leaf chain and sums the key counts of every leaf in
// the tree rooted at root.
func (t *Tree) CountKeys(root blockstore.BlockIndex) (int, error) {
	if root == 0 {
		return 0, nil
	}
	n, err := t.readNode(root)
	if err != nil {
		return 0, err
	}
	for !n.Leaf {
		n, err = t.readNode(n.Ptrs[0])
		if err != nil {
			return 0, err
		}
	}
	total := 0
	for {
		total += int(n.KeyCount)
		if n.Ptrs[0] == 0 {
			break
		}
		n, err = t.readNode(n.Ptrs[0])
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// insertResult carries a split back up the recursion: when split is true,
// promoted/right describe the new node that must be linked into the
// parent (or become the new root).
type insertResult struct {
	split    bool
	promoted blockstore.Key
	right    blockstore.BlockIndex
}

// Insert adds key -> dataBlock to the tree rooted at root, returning the
// (possibly new) root of the tree. Returns blockstore.ErrAlreadyExists if
// key is already present.
func (t *Tree) Insert(root blockstore.BlockIndex, key blockstore.Key, dataBlock blockstore.BlockIndex) (blockstore.BlockIndex, error) {
	if root == 0 {
		leaf := blockstore.TreeNode{Leaf: true, KeyCount: 1}
		leaf.Keys[0] = key
		leaf.Ptrs[1] = dataBlock
		idx, err := t.dev.Alloc()
		if err != nil {
			return 0, err
		}
		if err := t.writeNode(idx, leaf); err != nil {
			return 0, err
		}
		return idx, nil
	}

	res, err := t.insertRecurse(root, key, dataBlock)
	if err != nil {
		return 0, err
	}
	if !res.split {
		return root, nil
	}

	newRoot := blockstore.TreeNode{KeyCount: 1}
	newRoot.Keys[0] = res.promoted
	newRoot.Ptrs[0] = root
	newRoot.Ptrs[1] = res.right
	idx, err := t.dev.Alloc()
	if err != nil {
		return 0, err
	}
	if err := t.writeNode(idx, newRoot); err != nil {
		return 0, err
	}
	return idx, nil
}

func (t *Tree) insertRecurse(nodeIdx blockstore.BlockIndex, key blockstore.Key, dataBlock blockstore.BlockIndex) (insertResult, error) {
	n, err := t.readNode(nodeIdx)
	if err != nil {
		return insertResult{}, err
	}
	idx := findIndex(n, key)

	if n.Leaf {
		if idx > 0 && blockstore.CompareKeys(n.Keys[idx-1], key) == 0 {
			return insertResult{}, blockstore.ErrAlreadyExists
		}
		o := newOverflowNode(n)
		insertLeafOverflow(&o, idx, key, dataBlock)
		if o.keyCount <= blockstore.MaxKeys {
			return insertResult{}, t.writeNode(nodeIdx, o.toNode())
		}
		return t.splitLeaf(nodeIdx, o)
	}

	child := n.Ptrs[idx]
	res, err := t.insertRecurse(child, key, dataBlock)
	if err != nil {
		return insertResult{}, err
	}
	if !res.split {
		return insertResult{}, nil
	}

	o := newOverflowNode(n)
	insertInternalOverflow(&o, idx, res.promoted, res.right)
	if o.keyCount <= blockstore.MaxKeys {
		return insertResult{}, t.writeNode(nodeIdx, o.toNode())
	}
	return t.splitInternal(nodeIdx, o)
}

// overflowNode is a scratch buffer one slot larger than a real
// blockstore.TreeNode (Order keys, Order+1 pointers instead of MaxKeys /
// Order), mirroring the original engine's insert-time scratch array
// (original_source/src/bplus.c:875, "tkey keys[ORDER]"). Insertion is
// applied here first; the result is only ever copied into a real,
// correctly-sized TreeNode once it's known whether a split is needed, so
// the fixed on-disk arrays are never written out of bounds.
type overflowNode struct {
	leaf     bool
	keyCount int
	keys     [blockstore.Order]blockstore.Key
	ptrs     [blockstore.Order + 1]blockstore.BlockIndex
}

func newOverflowNode(n blockstore.TreeNode) overflowNode {
	var o overflowNode
	o.leaf = n.Leaf
	o.keyCount = int(n.KeyCount)
	copy(o.keys[:], n.Keys[:])
	copy(o.ptrs[:], n.Ptrs[:])
	return o
}

// toNode copies a non-overflowing buffer (keyCount <= MaxKeys) back into a
// real TreeNode. Must not be called with an overflowing buffer.
func (o overflowNode) toNode() blockstore.TreeNode {
	var n blockstore.TreeNode
	n.Leaf = o.leaf
	n.KeyCount = uint16(o.keyCount)
	copy(n.Keys[:], o.keys[:o.keyCount])
	copy(n.Ptrs[:], o.ptrs[:o.keyCount+1])
	return n
}

// insertLeafOverflow shifts keys[idx:] and ptrs[idx+1:] right by one slot
// and places the new key/data pointer at idx, mirroring tree_insert_key's
// leaf case (ptrs[0] is the sibling chain and is never shifted). o has
// room for one entry beyond MaxKeys, so this never overflows even when
// called against an already-full node.
func insertLeafOverflow(o *overflowNode, idx int, key blockstore.Key, dataBlock blockstore.BlockIndex) {
	kc := o.keyCount
	for k := kc; k > idx; k-- {
		o.keys[k] = o.keys[k-1]
		o.ptrs[k+1] = o.ptrs[k]
	}
	o.keys[idx] = key
	o.ptrs[idx+1] = dataBlock
	o.keyCount++
}

// insertInternalOverflow inserts a promoted separator key at idx with its
// right child pointer at idx+1.
func insertInternalOverflow(o *overflowNode, idx int, key blockstore.Key, right blockstore.BlockIndex) {
	kc := o.keyCount
	for k := kc; k > idx; k-- {
		o.keys[k] = o.keys[k-1]
		o.ptrs[k+1] = o.ptrs[k]
	}
	o.keys[idx] = key
	o.ptrs[idx+1] = right
	o.keyCount++
}

// insertLeafEntry applies a single key/data-pointer insertion directly to
// a real TreeNode. Used by the steal-from-sibling path in remove.go,
// where the destination node is underflowing and therefore has ample
// headroom; unlike the insert-with-split path above it never needs scratch
// room beyond MaxKeys.
func insertLeafEntry(n *blockstore.TreeNode, idx int, key blockstore.Key, dataBlock blockstore.BlockIndex) {
	kc := int(n.KeyCount)
	for k := kc; k > idx; k-- {
		n.Keys[k] = n.Keys[k-1]
		n.Ptrs[k+1] = n.Ptrs[k]
	}
	n.Keys[idx] = key
	n.Ptrs[idx+1] = dataBlock
	n.KeyCount++
}

// splitLeaf splits an overfull leaf buffer (Order keys, one too many) into
// two real leaves of roughly equal size, copying the promoted key up
// rather than removing it, and rewires the forward-sibling chain through
// the new right leaf.
func (t *Tree) splitLeaf(leftIdx blockstore.BlockIndex, o overflowNode) (insertResult, error) {
	total := o.keyCount
	leftCount := (total + 1) / 2

	var left, right blockstore.TreeNode
	left.Leaf = true
	right.Leaf = true

	left.KeyCount = uint16(leftCount)
	copy(left.Keys[:leftCount], o.keys[:leftCount])
	copy(left.Ptrs[1:leftCount+1], o.ptrs[1:leftCount+1])

	right.KeyCount = uint16(total - leftCount)
	for i := leftCount; i < total; i++ {
		right.Keys[i-leftCount] = o.keys[i]
		right.Ptrs[i-leftCount+1] = o.ptrs[i+1]
	}
	right.Ptrs[0] = o.ptrs[0]

	rightIdx, err := t.dev.Alloc()
	if err != nil {
		return insertResult{}, err
	}
	left.Ptrs[0] = rightIdx

	if err := t.writeNode(rightIdx, right); err != nil {
		return insertResult{}, err
	}
	if err := t.writeNode(leftIdx, left); err != nil {
		return insertResult{}, err
	}

	return insertResult{split: true, promoted: right.Keys[0], right: rightIdx}, nil
}

// splitInternal splits an overfull internal node buffer, moving (not
// copying) the middle key up to the parent.
func (t *Tree) splitInternal(leftIdx blockstore.BlockIndex, o overflowNode) (insertResult, error) {
	total := o.keyCount
	mid := total / 2
	promoted := o.keys[mid]

	var left, right blockstore.TreeNode
	left.KeyCount = uint16(mid)
	copy(left.Keys[:mid], o.keys[:mid])
	copy(left.Ptrs[:mid+1], o.ptrs[:mid+1])

	right.KeyCount = uint16(total - mid - 1)
	right.Ptrs[0] = o.ptrs[mid+1]
	for i := mid + 1; i < total; i++ {
		right.Keys[i-mid-1] = o.keys[i]
		right.Ptrs[i-mid] = o.ptrs[i+1]
	}

	rightIdx, err := t.dev.Alloc()
	if err != nil {
		return insertResult{}, err
	}
	if err := t.writeNode(rightIdx, right); err != nil {
		return insertResult{}, err
	}
	if err := t.writeNode(leftIdx, left); err != nil {
		return insertResult{}, err
	}

	return insertResult{split: true, promoted: promoted, right: rightIdx}, nil
}
