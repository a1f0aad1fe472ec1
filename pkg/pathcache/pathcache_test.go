package pathcache

import (
	"path/filepath"
	"testing"

	"github.com/ssargent/tagtree/pkg/blockstore"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "paths"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutAndResolve(t *testing.T) {
	c := openTestCache(t)

	if err := c.Put("/genre/jazz/miles-davis.mp3", 42); err != nil {
		t.Fatalf("put: %v", err)
	}

	inode, err := c.Resolve("/genre/jazz/miles-davis.mp3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inode != 42 {
		t.Fatalf("expected inode 42, got %d", inode)
	}
}

func TestCanonicalizeCollapsesSlashes(t *testing.T) {
	if got := Canonicalize("//genre//jazz/"); got != "/genre/jazz" {
		t.Fatalf("expected '/genre/jazz', got %q", got)
	}
}

func TestResolveMissingReturnsNotFound(t *testing.T) {
	c := openTestCache(t)
	if _, err := c.Resolve("/nope"); err != blockstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPathForReverseLookup(t *testing.T) {
	c := openTestCache(t)
	if err := c.Put("/genre/rock", 7); err != nil {
		t.Fatalf("put: %v", err)
	}
	path, err := c.PathFor(7)
	if err != nil {
		t.Fatalf("path for: %v", err)
	}
	if path != "/genre/rock" {
		t.Fatalf("expected '/genre/rock', got %q", path)
	}
}

func TestForgetRemovesBothDirections(t *testing.T) {
	c := openTestCache(t)
	if err := c.Put("/genre/blues", 9); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Forget("/genre/blues"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := c.Resolve("/genre/blues"); err != blockstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound after forget, got %v", err)
	}
	if _, err := c.PathFor(9); err != blockstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound after forget, got %v", err)
	}
}
