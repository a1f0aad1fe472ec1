package bptree

import "github.com/ssargent/tagtree/pkg/blockstore"

// Dispatcher operates one level above Tree: every leaf key in a tree maps
// to a data block, and a data block's Subkeys field can itself be the
// root of another Tree (lazily created on first nested insert). A data
// block flagged a synonym holds an alias target name in its payload
// instead, and has no subtree.
type Dispatcher struct {
	dev  *blockstore.Device
	tree *Tree
}

// NewDispatcher returns a Dispatcher operating against dev.
func NewDispatcher(dev *blockstore.Device) *Dispatcher {
	return &Dispatcher{dev: dev, tree: New(dev)}
}

func (d *Dispatcher) readData(idx blockstore.BlockIndex) (blockstore.DataNode, error) {
	raw, err := d.dev.Read(idx)
	if err != nil {
		return blockstore.DataNode{}, err
	}
	return blockstore.DecodeDataNode(raw)
}

func (d *Dispatcher) writeData(idx blockstore.BlockIndex, dn blockstore.DataNode) error {
	return d.dev.Write(idx, dn.Encode())
}

// Search looks up key in the tree rooted at root and returns its data
// block. If root is a data block rather than a tree node, the search
// continues in that data block's subkeys tree; a synonym data block
// yields blockstore.ErrNotADirectory.
func (d *Dispatcher) Search(root blockstore.BlockIndex, key blockstore.Key) (blockstore.BlockIndex, error) {
	if root != 0 {
		raw, err := d.dev.Read(root)
		if err != nil {
			return 0, err
		}
		if raw.Magic() == blockstore.MagicDataNode {
			dn, err := blockstore.DecodeDataNode(raw)
			if err != nil {
				return 0, err
			}
			if dn.IsSynonym() {
				return 0, blockstore.ErrNotADirectory
			}
			return d.tree.Search(dn.Subkeys, key)
		}
	}
	return d.tree.Search(root, key)
}

// Insert ensures key exists in the tree rooted at root, creating a fresh
// data block for it if necessary. It returns the tree's (possibly new)
// root and the key's data block.
func (d *Dispatcher) Insert(root blockstore.BlockIndex, key blockstore.Key) (newRoot, dataBlock blockstore.BlockIndex, err error) {
	if existing, err := d.tree.Search(root, key); err == nil {
		return root, existing, nil
	} else if err != blockstore.ErrNotFound {
		return 0, 0, err
	}

	dataIdx, err := d.dev.Alloc()
	if err != nil {
		return 0, 0, err
	}
	if err := d.writeData(dataIdx, blockstore.DataNode{}); err != nil {
		return 0, 0, err
	}

	newRoot, err = d.tree.Insert(root, key, dataIdx)
	if err != nil {
		return 0, 0, err
	}
	return newRoot, dataIdx, nil
}

// Remove deletes key from the tree rooted at root and frees its data
// block (and any inode overflow chain, and any subkeys tree, which must
// already be empty). Returns blockstore.ErrNotEmpty if the key's subkeys
// tree still has entries.
func (d *Dispatcher) Remove(root blockstore.BlockIndex, key blockstore.Key) (blockstore.BlockIndex, error) {
	dataIdx, err := d.tree.Search(root, key)
	if err != nil {
		return root, err
	}
	dn, err := d.readData(dataIdx)
	if err != nil {
		return root, err
	}
	if !dn.IsSynonym() && dn.Subkeys != 0 {
		count, err := d.tree.CountKeys(dn.Subkeys)
		if err != nil {
			return root, err
		}
		if count > 0 {
			return root, blockstore.ErrNotEmpty
		}
		if err := d.dev.Free(dn.Subkeys); err != nil {
			return root, err
		}
	}

	newRoot, err := d.tree.Remove(root, key)
	if err != nil {
		return root, err
	}
	if err := d.freeInodeChain(dn.NextInodes); err != nil {
		return root, err
	}
	if err := d.dev.Free(dataIdx); err != nil {
		return root, err
	}
	return newRoot, nil
}

func (d *Dispatcher) freeInodeChain(head blockstore.BlockIndex) error {
	for head != 0 {
		raw, err := d.dev.Read(head)
		if err != nil {
			return err
		}
		ib, err := blockstore.DecodeInodeBlock(raw)
		if err != nil {
			return err
		}
		next := ib.NextInodes
		if err := d.dev.Free(head); err != nil {
			return err
		}
		head = next
	}
	return nil
}

// SubSearch resolves key within the subkeys tree anchored at the data
// block dataBlock. Returns blockstore.ErrNotADirectory if dataBlock is a
// synonym, and blockstore.ErrNotFound if it has no subkeys tree yet.
func (d *Dispatcher) SubSearch(dataBlock blockstore.BlockIndex, key blockstore.Key) (blockstore.BlockIndex, error) {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return 0, err
	}
	if dn.IsSynonym() {
		return 0, blockstore.ErrNotADirectory
	}
	if dn.Subkeys == 0 {
		return 0, blockstore.ErrNotFound
	}
	return d.tree.Search(dn.Subkeys, key)
}

// SubInsert ensures key exists in dataBlock's subkeys tree, lazily
// creating the subtree on first use, and returns the new nested key's own
// data block.
func (d *Dispatcher) SubInsert(dataBlock blockstore.BlockIndex, key blockstore.Key) (blockstore.BlockIndex, error) {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return 0, err
	}
	if dn.IsSynonym() {
		return 0, blockstore.ErrNotADirectory
	}

	newSubRoot, nestedData, err := d.Insert(dn.Subkeys, key)
	if err != nil {
		return 0, err
	}
	if newSubRoot != dn.Subkeys {
		dn.Subkeys = newSubRoot
		if err := d.writeData(dataBlock, dn); err != nil {
			return 0, err
		}
	}
	return nestedData, nil
}

// SubRemove deletes key from dataBlock's subkeys tree.
func (d *Dispatcher) SubRemove(dataBlock blockstore.BlockIndex, key blockstore.Key) error {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return err
	}
	if dn.IsSynonym() {
		return blockstore.ErrNotADirectory
	}
	if dn.Subkeys == 0 {
		return blockstore.ErrNotFound
	}

	newRoot, err := d.Remove(dn.Subkeys, key)
	if err != nil {
		return err
	}
	if newRoot != 0 {
		empty, err := d.tree.CountKeys(newRoot)
		if err != nil {
			return err
		}
		if empty == 0 {
			if err := d.dev.Free(newRoot); err != nil {
				return err
			}
			newRoot = 0
		}
	}
	dn.Subkeys = newRoot
	return d.writeData(dataBlock, dn)
}

// SubMin returns the leftmost key of dataBlock's subkeys tree.
func (d *Dispatcher) SubMin(dataBlock blockstore.BlockIndex) (blockstore.Key, blockstore.BlockIndex, error) {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return blockstore.Key{}, 0, err
	}
	if dn.IsSynonym() {
		return blockstore.Key{}, 0, blockstore.ErrNotADirectory
	}
	return d.tree.Min(dn.Subkeys)
}

// SubCount returns the number of keys in dataBlock's subkeys tree.
func (d *Dispatcher) SubCount(dataBlock blockstore.BlockIndex) (int, error) {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return 0, err
	}
	if dn.IsSynonym() {
		return 0, blockstore.ErrNotADirectory
	}
	return d.tree.CountKeys(dn.Subkeys)
}

// CreateSynonym turns dataBlock into an alias for target. Fails with
// blockstore.ErrNotEmpty if dataBlock already anchors a non-empty
// subkeys tree.
func (d *Dispatcher) CreateSynonym(dataBlock blockstore.BlockIndex, target string) error {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return err
	}
	if !dn.IsSynonym() && dn.Subkeys != 0 {
		count, err := d.tree.CountKeys(dn.Subkeys)
		if err != nil {
			return err
		}
		if count > 0 {
			return blockstore.ErrNotEmpty
		}
		if err := d.dev.Free(dn.Subkeys); err != nil {
			return err
		}
	}
	dn.SetSynonymTarget(target)
	dn.Subkeys = 0
	return d.writeData(dataBlock, dn)
}

// ListInodes returns every inode associated with dataBlock, walking the
// inline array and then the overflow chain.
func (d *Dispatcher) ListInodes(dataBlock blockstore.BlockIndex) ([]blockstore.Inode, error) {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return nil, err
	}
	out := dn.InlineInodes()

	next := dn.NextInodes
	for next != 0 {
		raw, err := d.dev.Read(next)
		if err != nil {
			return nil, err
		}
		ib, err := blockstore.DecodeInodeBlock(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ib.Inodes[:ib.Count]...)
		next = ib.NextInodes
	}
	return out, nil
}

// AddInode appends inode to dataBlock's inode list, overflowing into a
// new chained inode block once the inline array (MaxInlineInodes
// entries) is full.
func (d *Dispatcher) AddInode(dataBlock blockstore.BlockIndex, inode blockstore.Inode) error {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return err
	}

	if int(dn.InodeCount) < blockstore.MaxInlineInodes {
		inodes := dn.InlineInodes()
		inodes = append(inodes, inode)
		dn.SetInlineInodes(inodes)
		dn.InodeCount++
		return d.writeData(dataBlock, dn)
	}

	if dn.NextInodes == 0 {
		idx, err := d.dev.Alloc()
		if err != nil {
			return err
		}
		dn.NextInodes = idx
		dn.InodeCount++
		if err := d.writeData(dataBlock, dn); err != nil {
			return err
		}
		ib := blockstore.InodeBlock{Count: 1}
		ib.Inodes[0] = inode
		return d.dev.Write(idx, ib.Encode())
	}

	cur := dn.NextInodes
	for {
		raw, err := d.dev.Read(cur)
		if err != nil {
			return err
		}
		ib, err := blockstore.DecodeInodeBlock(raw)
		if err != nil {
			return err
		}
		if int(ib.Count) < blockstore.MaxOverflowInodes {
			ib.Inodes[ib.Count] = inode
			ib.Count++
			if err := d.dev.Write(cur, ib.Encode()); err != nil {
				return err
			}
			dn.InodeCount++
			return d.writeData(dataBlock, dn)
		}
		if ib.NextInodes == 0 {
			idx, err := d.dev.Alloc()
			if err != nil {
				return err
			}
			ib.NextInodes = idx
			if err := d.dev.Write(cur, ib.Encode()); err != nil {
				return err
			}
			next := blockstore.InodeBlock{Count: 1}
			next.Inodes[0] = inode
			if err := d.dev.Write(idx, next.Encode()); err != nil {
				return err
			}
			dn.InodeCount++
			return d.writeData(dataBlock, dn)
		}
		cur = ib.NextInodes
	}
}

// RemoveInode deletes the first occurrence of inode from dataBlock's
// inode list, compacting the inline array and overflow chain.
func (d *Dispatcher) RemoveInode(dataBlock blockstore.BlockIndex, inode blockstore.Inode) error {
	dn, err := d.readData(dataBlock)
	if err != nil {
		return err
	}

	all, err := d.ListInodes(dataBlock)
	if err != nil {
		return err
	}
	out := all[:0]
	removed := false
	for _, ino := range all {
		if !removed && ino == inode {
			removed = true
			continue
		}
		out = append(out, ino)
	}
	if !removed {
		return blockstore.ErrNotFound
	}

	if err := d.freeInodeChain(dn.NextInodes); err != nil {
		return err
	}
	dn.NextInodes = 0
	dn.InodeCount = 0
	if err := d.writeData(dataBlock, dn); err != nil {
		return err
	}
	for _, ino := range out {
		if err := d.AddInode(dataBlock, ino); err != nil {
			return err
		}
	}
	return nil
}
