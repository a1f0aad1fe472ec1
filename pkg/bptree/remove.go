package bptree

import "github.com/ssargent/tagtree/pkg/blockstore"

// Remove deletes key from the tree rooted at root, returning the
// (possibly new) root. Preference order when a node underflows is
// steal-from-left, then steal-from-right, then merge (merging into the
// left sibling first, the right sibling otherwise), mirroring
// tree_remove_recurse.
func (t *Tree) Remove(root blockstore.BlockIndex, key blockstore.Key) (blockstore.BlockIndex, error) {
	if root == 0 {
		return root, blockstore.ErrNotFound
	}
	if _, _, _, err := t.removeRecurse(root, key, true); err != nil {
		return root, err
	}

	n, err := t.readNode(root)
	if err != nil {
		return 0, err
	}
	if !n.Leaf && n.KeyCount == 0 {
		child := n.Ptrs[0]
		if err := t.dev.Free(root); err != nil {
			return 0, err
		}
		return child, nil
	}
	return root, nil
}

// removeRecurse deletes key from the subtree at nodeIdx. It reports
// whether nodeIdx now underflows (never true for the root, which has no
// minimum), whether the subtree's leftmost key changed, and if so what
// the new leftmost key is, so the caller can fix up its own separator.
func (t *Tree) removeRecurse(nodeIdx blockstore.BlockIndex, key blockstore.Key, isRoot bool) (underflow, leftmostChanged bool, newLeftmost blockstore.Key, err error) {
	n, err := t.readNode(nodeIdx)
	if err != nil {
		return false, false, blockstore.Key{}, err
	}
	idx := findIndex(n, key)

	if n.Leaf {
		if idx == 0 || blockstore.CompareKeys(n.Keys[idx-1], key) != 0 {
			return false, false, blockstore.Key{}, blockstore.ErrNotFound
		}
		removeLeafEntry(&n, idx-1)
		if err := t.writeNode(nodeIdx, n); err != nil {
			return false, false, blockstore.Key{}, err
		}
		leftmostChanged = idx-1 == 0
		if n.KeyCount > 0 {
			newLeftmost = n.Keys[0]
		}
		underflow = !isRoot && int(n.KeyCount) < blockstore.MinKeys
		return underflow, leftmostChanged, newLeftmost, nil
	}

	childIdx := idx
	childUnderflow, childLeftChanged, childNewLeftmost, err := t.removeRecurse(n.Ptrs[childIdx], key, false)
	if err != nil {
		return false, false, blockstore.Key{}, err
	}

	dirty := false
	if childLeftChanged && childIdx > 0 {
		n.Keys[childIdx-1] = childNewLeftmost
		dirty = true
	}

	if childUnderflow {
		merged, err := t.fixUnderflow(&n, childIdx)
		if err != nil {
			return false, false, blockstore.Key{}, err
		}
		dirty = dirty || merged
	}

	if dirty {
		if err := t.writeNode(nodeIdx, n); err != nil {
			return false, false, blockstore.Key{}, err
		}
	}

	ownLeftChanged := childLeftChanged && childIdx == 0
	var ownNewLeftmost blockstore.Key
	if ownLeftChanged {
		ownNewLeftmost, _, err = t.Min(nodeIdx)
		if err != nil {
			return false, false, blockstore.Key{}, err
		}
	}
	underflow = !isRoot && int(n.KeyCount) < blockstore.MinKeys
	return underflow, ownLeftChanged, ownNewLeftmost, nil
}

// removeLeafEntry deletes the key/data-pointer pair at position pos,
// leaving ptrs[0] (the sibling chain pointer) untouched.
func removeLeafEntry(n *blockstore.TreeNode, pos int) {
	kc := int(n.KeyCount)
	for k := pos; k < kc-1; k++ {
		n.Keys[k] = n.Keys[k+1]
		n.Ptrs[k+1] = n.Ptrs[k+2]
	}
	n.Keys[kc-1] = blockstore.Key{}
	n.Ptrs[kc] = 0
	n.KeyCount--
}

// removeInternalEntry deletes the separator key at pos together with the
// child pointer at pos+1.
func removeInternalEntry(n *blockstore.TreeNode, pos int) {
	kc := int(n.KeyCount)
	for k := pos; k < kc-1; k++ {
		n.Keys[k] = n.Keys[k+1]
		n.Ptrs[k+1] = n.Ptrs[k+2]
	}
	n.Keys[kc-1] = blockstore.Key{}
	n.Ptrs[kc] = 0
	n.KeyCount--
}

// fixUnderflow resolves an underflowing child of parent at childIdx by
// stealing a key from a sibling that can spare one, or merging with a
// sibling otherwise. Returns true whenever parent itself changed, which
// is always the case once it returns without error: a steal rewrites one
// separator key, and a merge removes a separator key and a child pointer.
func (t *Tree) fixUnderflow(parent *blockstore.TreeNode, childIdx int) (bool, error) {
	child, err := t.readNode(parent.Ptrs[childIdx])
	if err != nil {
		return false, err
	}

	if childIdx > 0 {
		left, err := t.readNode(parent.Ptrs[childIdx-1])
		if err != nil {
			return false, err
		}
		if int(left.KeyCount) > blockstore.MinKeys {
			if err := t.stealFromLeft(parent, childIdx, &left, &child); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	if childIdx < int(parent.KeyCount) {
		right, err := t.readNode(parent.Ptrs[childIdx+1])
		if err != nil {
			return false, err
		}
		if int(right.KeyCount) > blockstore.MinKeys {
			if err := t.stealFromRight(parent, childIdx, &child, &right); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	if childIdx > 0 {
		left, err := t.readNode(parent.Ptrs[childIdx-1])
		if err != nil {
			return false, err
		}
		if err := t.mergeSiblings(parent, childIdx-1, &left, &child); err != nil {
			return false, err
		}
		return true, nil
	}

	right, err := t.readNode(parent.Ptrs[childIdx+1])
	if err != nil {
		return false, err
	}
	if err := t.mergeSiblings(parent, childIdx, &child, &right); err != nil {
		return false, err
	}
	return true, nil
}

// stealFromLeft moves left's last entry into child as its new first
// entry, fixing up the separator key in parent.
func (t *Tree) stealFromLeft(parent *blockstore.TreeNode, childIdx int, left, child *blockstore.TreeNode) error {
	lastIdx := int(left.KeyCount) - 1

	if child.Leaf {
		insertLeafEntry(child, 0, left.Keys[lastIdx], left.Ptrs[lastIdx+1])
		removeLeafEntry(left, lastIdx)
		parent.Keys[childIdx-1] = child.Keys[0]
	} else {
		for k := int(child.KeyCount); k > 0; k-- {
			child.Keys[k] = child.Keys[k-1]
			child.Ptrs[k+1] = child.Ptrs[k]
		}
		child.Ptrs[1] = child.Ptrs[0]
		child.Keys[0] = parent.Keys[childIdx-1]
		child.Ptrs[0] = left.Ptrs[lastIdx+1]
		child.KeyCount++

		parent.Keys[childIdx-1] = left.Keys[lastIdx]
		left.Keys[lastIdx] = blockstore.Key{}
		left.Ptrs[lastIdx+1] = 0
		left.KeyCount--
	}

	if err := t.writeNode(parent.Ptrs[childIdx-1], *left); err != nil {
		return err
	}
	return t.writeNode(parent.Ptrs[childIdx], *child)
}

// stealFromRight moves right's first entry into child as its new last
// entry, fixing up the separator key in parent.
func (t *Tree) stealFromRight(parent *blockstore.TreeNode, childIdx int, child, right *blockstore.TreeNode) error {
	if child.Leaf {
		insertLeafEntry(child, int(child.KeyCount), right.Keys[0], right.Ptrs[1])
		removeLeafEntry(right, 0)
		parent.Keys[childIdx] = right.Keys[0]
	} else {
		kc := int(child.KeyCount)
		child.Keys[kc] = parent.Keys[childIdx]
		child.Ptrs[kc+1] = right.Ptrs[0]
		child.KeyCount++

		parent.Keys[childIdx] = right.Keys[0]
		right.Ptrs[0] = right.Ptrs[1]
		for k := 0; k < int(right.KeyCount)-1; k++ {
			right.Keys[k] = right.Keys[k+1]
			right.Ptrs[k+1] = right.Ptrs[k+2]
		}
		right.Keys[right.KeyCount-1] = blockstore.Key{}
		right.Ptrs[right.KeyCount] = 0
		right.KeyCount--
	}

	if err := t.writeNode(parent.Ptrs[childIdx], *child); err != nil {
		return err
	}
	return t.writeNode(parent.Ptrs[childIdx+1], *right)
}

// mergeSiblings merges right into left (left absorbs right's entries),
// removes the separator key at parent position sep, frees right's block,
// and rewires the leaf sibling chain when applicable.
func (t *Tree) mergeSiblings(parent *blockstore.TreeNode, sep int, left, right *blockstore.TreeNode) error {
	rightBlock := parent.Ptrs[sep+1]

	if left.Leaf {
		base := int(left.KeyCount)
		for i := 0; i < int(right.KeyCount); i++ {
			left.Keys[base+i] = right.Keys[i]
			left.Ptrs[base+i+1] = right.Ptrs[i+1]
		}
		left.KeyCount += right.KeyCount
		left.Ptrs[0] = right.Ptrs[0]
	} else {
		base := int(left.KeyCount)
		left.Keys[base] = parent.Keys[sep]
		left.Ptrs[base+1] = right.Ptrs[0]
		for i := 0; i < int(right.KeyCount); i++ {
			left.Keys[base+1+i] = right.Keys[i]
			left.Ptrs[base+2+i] = right.Ptrs[i+1]
		}
		left.KeyCount += right.KeyCount + 1
	}

	removeInternalEntry(parent, sep)

	if err := t.writeNode(parent.Ptrs[sep], *left); err != nil {
		return err
	}
	return t.dev.Free(rightBlock)
}
