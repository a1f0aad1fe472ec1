package bptree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ssargent/tagtree/pkg/blockstore"
)

func openTestTree(t *testing.T) (*blockstore.Device, *Tree) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.tgt")
	dev, err := blockstore.Open(path, blockstore.Options{})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev, New(dev)
}

func TestInsertSearchSingleKey(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()

	newRoot, err := tree.Insert(root, blockstore.NewKey("jazz"), 5)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := tree.Search(newRoot, blockstore.NewKey("jazz"))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected data block 5, got %d", got)
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()

	root, err := tree.Insert(root, blockstore.NewKey("rock"), 5)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := tree.Insert(root, blockstore.NewKey("rock"), 6); err != blockstore.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestInsertManyKeysTriggersSplits(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()

	const n = 200
	for i := 0; i < n; i++ {
		var err error
		root, err = tree.Insert(root, blockstore.NewKey(fmt.Sprintf("tag-%04d", i)), blockstore.BlockIndex(i+100))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	count, err := tree.CountKeys(root)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d keys, got %d", n, count)
	}

	for i := 0; i < n; i++ {
		got, err := tree.Search(root, blockstore.NewKey(fmt.Sprintf("tag-%04d", i)))
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if got != blockstore.BlockIndex(i+100) {
			t.Fatalf("key %d: expected data block %d, got %d", i, i+100, got)
		}
	}
}

func TestMinReturnsLeftmostKey(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()

	keys := []string{"zebra", "apple", "mango", "banana"}
	for i, k := range keys {
		var err error
		root, err = tree.Insert(root, blockstore.NewKey(k), blockstore.BlockIndex(i+1))
		if err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}

	minKey, dataBlock, err := tree.Min(root)
	if err != nil {
		t.Fatalf("min: %v", err)
	}
	if minKey.String() != "apple" {
		t.Fatalf("expected min key 'apple', got %q", minKey.String())
	}
	if dataBlock != 2 {
		t.Fatalf("expected data block 2 for apple, got %d", dataBlock)
	}
}

func TestSearchMissingKeyReturnsNotFound(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()
	if _, err := tree.Search(root, blockstore.NewKey("missing")); err != blockstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveSingleKeyEmptiesTree(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()

	root, err := tree.Insert(root, blockstore.NewKey("solo"), 9)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	root, err = tree.Remove(root, blockstore.NewKey("solo"))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	count, err := tree.CountKeys(root)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty tree, got %d keys", count)
	}
}

func TestInsertRemoveManyKeysSurviveMerges(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()

	const n = 150
	for i := 0; i < n; i++ {
		var err error
		root, err = tree.Insert(root, blockstore.NewKey(fmt.Sprintf("k%04d", i)), blockstore.BlockIndex(i+1))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	// remove every third key, exercising steal and merge paths.
	removed := map[int]bool{}
	for i := 0; i < n; i += 3 {
		var err error
		root, err = tree.Remove(root, blockstore.NewKey(fmt.Sprintf("k%04d", i)))
		if err != nil {
			t.Fatalf("remove %d: %v", i, err)
		}
		removed[i] = true
	}

	count, err := tree.CountKeys(root)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	expected := 0
	for i := 0; i < n; i++ {
		if !removed[i] {
			expected++
		}
	}
	if count != expected {
		t.Fatalf("expected %d keys remaining, got %d", expected, count)
	}

	for i := 0; i < n; i++ {
		got, err := tree.Search(root, blockstore.NewKey(fmt.Sprintf("k%04d", i)))
		if removed[i] {
			if err != blockstore.ErrNotFound {
				t.Fatalf("key %d: expected removed, got %v/%v", i, got, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("key %d: expected present, got %v", i, err)
		}
		if got != blockstore.BlockIndex(i+1) {
			t.Fatalf("key %d: expected data block %d, got %d", i, i+1, got)
		}
	}
}

// TestInsertRemoveDeepTreeInternalMerges builds a tree from 3000 ascending
// keys, deep enough to have several levels of internal nodes between the
// root and the leaves, then removes a large contiguous run of keys so that
// internal nodes, not just leaves, underflow and merge.
func TestInsertRemoveDeepTreeInternalMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep.tgt")
	dev, err := blockstore.Open(path, blockstore.Options{InitialBlocks: 8192})
	if err != nil {
		t.Fatalf("open device: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	tree := New(dev)
	root := dev.Root()

	const n = 3000
	for i := 0; i < n; i++ {
		var err error
		root, err = tree.Insert(root, blockstore.NewKey(fmt.Sprintf("k%05d", i)), blockstore.BlockIndex(i+1))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	removed := map[int]bool{}
	for i := 500; i < 2500; i++ {
		var err error
		root, err = tree.Remove(root, blockstore.NewKey(fmt.Sprintf("k%05d", i)))
		if err != nil {
			t.Fatalf("remove %d: %v", i, err)
		}
		removed[i] = true
	}

	count, err := tree.CountKeys(root)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	expected := n - len(removed)
	if count != expected {
		t.Fatalf("expected %d keys remaining, got %d", expected, count)
	}

	for i := 0; i < n; i++ {
		got, err := tree.Search(root, blockstore.NewKey(fmt.Sprintf("k%05d", i)))
		if removed[i] {
			if err != blockstore.ErrNotFound {
				t.Fatalf("key %d: expected removed, got %v/%v", i, got, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("key %d: expected present, got %v", i, err)
		}
		if got != blockstore.BlockIndex(i+1) {
			t.Fatalf("key %d: expected data block %d, got %d", i, i+1, got)
		}
	}
}

func TestRemoveMissingKeyReturnsNotFound(t *testing.T) {
	dev, tree := openTestTree(t)
	root := dev.Root()
	root, err := tree.Insert(root, blockstore.NewKey("present"), 1)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := tree.Remove(root, blockstore.NewKey("absent")); err != blockstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
