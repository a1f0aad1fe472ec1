package blockstore

import (
	"path/filepath"
	"testing"
)

func openTestDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "container.tgt")
	d, err := Open(path, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenFormatsFreshContainer(t *testing.T) {
	d := openTestDevice(t, Options{})

	sb := d.Superblock()
	if sb.RootIndex != 1 {
		t.Fatalf("expected root 1, got %d", sb.RootIndex)
	}
	if sb.MaxSize != DefaultBlocks {
		t.Fatalf("expected max size %d, got %d", DefaultBlocks, sb.MaxSize)
	}
	if sb.FreeHead != 2 {
		t.Fatalf("expected free head 2, got %d", sb.FreeHead)
	}

	raw, err := d.Read(1)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	root, err := DecodeTreeNode(raw)
	if err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if !root.Leaf || root.KeyCount != 0 {
		t.Fatalf("expected empty leaf root, got %+v", root)
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	d := openTestDevice(t, Options{})

	idx, err := d.Alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if idx != 2 {
		t.Fatalf("expected first alloc to return block 2, got %d", idx)
	}
	if d.Superblock().FreeHead != 3 {
		t.Fatalf("expected free head advanced to 3, got %d", d.Superblock().FreeHead)
	}

	if err := d.Free(idx); err != nil {
		t.Fatalf("free: %v", err)
	}
	if d.Superblock().FreeHead != idx {
		t.Fatalf("expected freed block back at head, got %d", d.Superblock().FreeHead)
	}
}

func TestAllocExhaustionReturnsOutOfSpace(t *testing.T) {
	d := openTestDevice(t, Options{InitialBlocks: 2})

	if _, err := d.Alloc(); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if _, err := d.Alloc(); err != ErrOutOfSpace {
		t.Fatalf("expected ErrOutOfSpace, got %v", err)
	}
}

func TestGrowExtendsFreeList(t *testing.T) {
	d := openTestDevice(t, Options{InitialBlocks: 2})

	if _, err := d.Alloc(); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if _, err := d.Alloc(); err != ErrOutOfSpace {
		t.Fatalf("expected exhausted free list before grow, got %v", err)
	}

	if err := d.Grow(4); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if d.Superblock().MaxSize != 6 {
		t.Fatalf("expected max size 6 after grow, got %d", d.Superblock().MaxSize)
	}

	for i := 0; i < 4; i++ {
		if _, err := d.Alloc(); err != nil {
			t.Fatalf("alloc %d after grow: %v", i, err)
		}
	}
	if _, err := d.Alloc(); err != ErrOutOfSpace {
		t.Fatalf("expected free list exhausted again, got %v", err)
	}
}

func TestWriteReadRoundTripNoCache(t *testing.T) {
	d := openTestDevice(t, Options{})

	node := TreeNode{Leaf: true, KeyCount: 1}
	node.Keys[0] = NewKey("rock")
	if err := d.Write(1, node.Encode()); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := d.Read(1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := DecodeTreeNode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Keys[0].String() != "rock" {
		t.Fatalf("expected key 'rock', got %q", got.Keys[0].String())
	}
}

func TestWriteReadRoundTripWithCache(t *testing.T) {
	d := openTestDevice(t, Options{CacheEnabled: true})

	node := TreeNode{Leaf: true, KeyCount: 1}
	node.Keys[0] = NewKey("pop")
	if err := d.Write(1, node.Encode()); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := d.Read(1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := DecodeTreeNode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Keys[0].String() != "pop" {
		t.Fatalf("expected key 'pop', got %q", got.Keys[0].String())
	}

	hits, misses := d.CacheStats()
	if hits == 0 {
		t.Fatalf("expected at least one cache hit, got hits=%d misses=%d", hits, misses)
	}
}

func TestReopenPersistsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "container.tgt")

	d, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx, err := d.Alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Superblock().FreeHead == idx {
		t.Fatalf("expected free head to have advanced past %d on reopen", idx)
	}
}

func TestReadWriteOutOfRangeRejected(t *testing.T) {
	d := openTestDevice(t, Options{})

	if _, err := d.Read(0); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument reading block 0, got %v", err)
	}
	if _, err := d.Read(d.Superblock().MaxSize + 1); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument reading past max size, got %v", err)
	}
}
