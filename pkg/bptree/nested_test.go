package bptree

import (
	"path/filepath"
	"testing"

	"github.com/ssargent/tagtree/pkg/blockstore"
)

func openTestDispatcher(t *testing.T) (*blockstore.Device, *Dispatcher) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatch.tgt")
	dev, err := blockstore.Open(path, blockstore.Options{})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev, NewDispatcher(dev)
}

func TestDispatcherInsertIsIdempotent(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, data1, err := disp.Insert(root, blockstore.NewKey("genre"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, data2, err := disp.Insert(root, blockstore.NewKey("genre"))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if data1 != data2 {
		t.Fatalf("expected same data block on repeated insert, got %d and %d", data1, data2)
	}
}

func TestAddAndListInodes(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, dataBlock, err := disp.Insert(root, blockstore.NewKey("jazz"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = root

	for i := blockstore.Inode(1); i <= 5; i++ {
		if err := disp.AddInode(dataBlock, i); err != nil {
			t.Fatalf("add inode %d: %v", i, err)
		}
	}

	inodes, err := disp.ListInodes(dataBlock)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inodes) != 5 {
		t.Fatalf("expected 5 inodes, got %d", len(inodes))
	}
}

func TestAddInodeOverflowsToChainedBlock(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, dataBlock, err := disp.Insert(root, blockstore.NewKey("huge"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = root

	total := blockstore.MaxInlineInodes + 10
	for i := 0; i < total; i++ {
		if err := disp.AddInode(dataBlock, blockstore.Inode(i+1)); err != nil {
			t.Fatalf("add inode %d: %v", i, err)
		}
	}

	inodes, err := disp.ListInodes(dataBlock)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inodes) != total {
		t.Fatalf("expected %d inodes, got %d", total, len(inodes))
	}

	raw, err := dev.Read(dataBlock)
	if err != nil {
		t.Fatalf("read data block: %v", err)
	}
	dn, err := blockstore.DecodeDataNode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dn.NextInodes == 0 {
		t.Fatal("expected inode overflow chain to be non-empty")
	}
}

func TestRemoveInodeCompactsList(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, dataBlock, err := disp.Insert(root, blockstore.NewKey("tag"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = root

	for i := blockstore.Inode(1); i <= 3; i++ {
		if err := disp.AddInode(dataBlock, i); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := disp.RemoveInode(dataBlock, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}

	inodes, err := disp.ListInodes(dataBlock)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inodes) != 2 {
		t.Fatalf("expected 2 inodes remaining, got %d", len(inodes))
	}
	for _, ino := range inodes {
		if ino == 2 {
			t.Fatal("expected inode 2 to be removed")
		}
	}
}

func TestSubInsertLazilyCreatesSubtree(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, parentData, err := disp.Insert(root, blockstore.NewKey("genre"))
	if err != nil {
		t.Fatalf("insert parent: %v", err)
	}
	_ = root

	if _, err := disp.SubSearch(parentData, blockstore.NewKey("jazz")); err != blockstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound before any subkey exists, got %v", err)
	}

	if _, err := disp.SubInsert(parentData, blockstore.NewKey("jazz")); err != nil {
		t.Fatalf("sub insert: %v", err)
	}

	found, err := disp.SubSearch(parentData, blockstore.NewKey("jazz"))
	if err != nil {
		t.Fatalf("sub search: %v", err)
	}
	if found == 0 {
		t.Fatal("expected non-zero nested data block")
	}

	count, err := disp.SubCount(parentData)
	if err != nil {
		t.Fatalf("sub count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 nested key, got %d", count)
	}
}

func TestCreateSynonymBlocksSubOperations(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, parentData, err := disp.Insert(root, blockstore.NewKey("alias"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = root

	if err := disp.CreateSynonym(parentData, "genre/jazz"); err != nil {
		t.Fatalf("create synonym: %v", err)
	}

	if _, err := disp.SubSearch(parentData, blockstore.NewKey("anything")); err != blockstore.ErrNotADirectory {
		t.Fatalf("expected ErrNotADirectory, got %v", err)
	}

	raw, err := dev.Read(parentData)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dn, err := blockstore.DecodeDataNode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dn.SynonymTarget() != "genre/jazz" {
		t.Fatalf("expected target 'genre/jazz', got %q", dn.SynonymTarget())
	}
}

func TestRemoveFailsWhenSubtreeNonEmpty(t *testing.T) {
	dev, disp := openTestDispatcher(t)
	root := dev.Root()

	root, parentData, err := disp.Insert(root, blockstore.NewKey("genre"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := disp.SubInsert(parentData, blockstore.NewKey("jazz")); err != nil {
		t.Fatalf("sub insert: %v", err)
	}

	if _, err := disp.Remove(root, blockstore.NewKey("genre")); err != blockstore.ErrNotEmpty {
		t.Fatalf("expected ErrNotEmpty, got %v", err)
	}
}
