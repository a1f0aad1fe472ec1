// Package pathcache provides the path<->inode side table a filesystem
// front-end needs before it can call into the tag engine: resolving a
// human-readable path to the inode number the engine's data blocks store,
// and the reverse lookup for listing. It is a separate file and a
// separate failure domain from the block container; its pebble log is
// not consulted by pkg/bptree or pkg/blockstore.
package pathcache

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

const (
	forwardPrefix = "p:" // path -> inode
	reversePrefix = "i:" // inode -> path
)

// Cache is a pebble-backed path<->inode side table.
type Cache struct {
	db *pebble.DB
}

// Open opens (or creates) the path cache at path.
func Open(path string) (*Cache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pathcache: open %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying pebble database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Canonicalize strips repeated and trailing slashes, mirroring
// get_canonical_path's normalization.
func Canonicalize(path string) string {
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return "/" + strings.Join(kept, "/")
}

// Put records the association between path and inode, overwriting any
// previous mapping for either.
func (c *Cache) Put(path string, inode blockstore.Inode) error {
	path = Canonicalize(path)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(inode))
	if err := c.db.Set([]byte(forwardPrefix+path), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("pathcache: put %s: %w", path, err)
	}
	if err := c.db.Set([]byte(fmt.Sprintf("%s%d", reversePrefix, inode)), []byte(path), pebble.Sync); err != nil {
		return fmt.Errorf("pathcache: put reverse %d: %w", inode, err)
	}
	return nil
}

// Resolve returns the inode registered for path.
func (c *Cache) Resolve(path string) (blockstore.Inode, error) {
	path = Canonicalize(path)
	val, closer, err := c.db.Get([]byte(forwardPrefix + path))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, blockstore.ErrNotFound
		}
		return 0, fmt.Errorf("pathcache: resolve %s: %w", path, err)
	}
	defer closer.Close()
	return blockstore.Inode(binary.LittleEndian.Uint32(val)), nil
}

// PathFor returns the path most recently registered for inode, mirroring
// basename_from_inode's reverse lookup.
func (c *Cache) PathFor(inode blockstore.Inode) (string, error) {
	val, closer, err := c.db.Get([]byte(fmt.Sprintf("%s%d", reversePrefix, inode)))
	if err != nil {
		if err == pebble.ErrNotFound {
			return "", blockstore.ErrNotFound
		}
		return "", fmt.Errorf("pathcache: path for %d: %w", inode, err)
	}
	defer closer.Close()
	return string(val), nil
}

// Forget removes both directions of the mapping for path.
func (c *Cache) Forget(path string) error {
	path = Canonicalize(path)
	inode, err := c.Resolve(path)
	if err != nil {
		return err
	}
	if err := c.db.Delete([]byte(forwardPrefix+path), pebble.Sync); err != nil {
		return fmt.Errorf("pathcache: forget %s: %w", path, err)
	}
	return c.db.Delete([]byte(fmt.Sprintf("%s%d", reversePrefix, inode)), pebble.Sync)
}
