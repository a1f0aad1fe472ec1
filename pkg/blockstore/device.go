package blockstore

import (
	"fmt"
	"os"
	"sync"
)

// Options configures how a container is opened or created.
type Options struct {
	// CacheEnabled turns on the direct-mapped write-back block cache.
	CacheEnabled bool

	// CacheMaxWrites overrides CacheMaxWrites when non-zero.
	CacheMaxWrites int

	// InitialBlocks overrides DefaultBlocks when formatting a new
	// container (ignored when opening an existing one).
	InitialBlocks BlockIndex
}

func (o Options) maxWrites() int {
	if o.CacheMaxWrites > 0 {
		return o.CacheMaxWrites
	}
	return CacheMaxWrites
}

func (o Options) initialBlocks() BlockIndex {
	if o.InitialBlocks > 0 {
		return o.InitialBlocks
	}
	return DefaultBlocks
}

// Device is the fixed-size-block container: an open file, its in-memory
// superblock, the free-list head, and an optional write-back cache.
// A Device is single-writer by design (spec: no internal concurrency);
// the mutex only guards against misuse from multiple goroutines, not
// against true concurrent access.
type Device struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	super Superblock
	cache *cache
	open  bool
}

// Open opens an existing container at path, or creates and formats one if
// it does not already exist.
func Open(path string, opts Options) (*Device, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", path, err)
	}

	d := &Device{path: path, file: file, open: true}
	if opts.CacheEnabled {
		d.cache = newCache(opts.maxWrites())
	}

	if fresh {
		if err := d.format(opts.initialBlocks()); err != nil {
			file.Close()
			return nil, err
		}
		return d, nil
	}

	if err := d.readSuperblock(); err != nil {
		file.Close()
		return nil, err
	}
	return d, nil
}

// format lays down a fresh superblock (root at block 1) and a free list
// covering blocks 2..maxSize, mirroring tree_format/tree_format_free.
func (d *Device) format(maxSize BlockIndex) error {
	if maxSize < 2 {
		return ErrInvalidArgument
	}

	root := TreeNode{Leaf: true}
	if err := d.writeRawDirect(1, root.Encode()); err != nil {
		return err
	}

	for i := BlockIndex(2); i <= maxSize; i++ {
		next := i + 1
		if i == maxSize {
			next = 0
		}
		fb := FreeBlock{Next: next}
		if err := d.writeRawDirect(i, fb.Encode()); err != nil {
			return err
		}
	}

	d.super = Superblock{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		RootIndex:    1,
		MaxSize:      maxSize,
		FreeHead:     2,
	}
	if maxSize < 2 {
		d.super.FreeHead = 0
	}
	return d.writeSuperblock()
}

func (d *Device) readSuperblock() error {
	raw, err := d.readRawDirect(0)
	if err != nil {
		return err
	}
	sb, err := DecodeSuperblock(raw)
	if err != nil {
		return err
	}
	d.super = sb
	return nil
}

func (d *Device) writeSuperblock() error {
	return d.writeRawDirect(0, d.super.Encode())
}

// Close flushes any dirty cache entries and the superblock, then closes
// the underlying file.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrNotOpen
	}
	if err := d.flushLocked(); err != nil {
		return err
	}
	err := d.file.Close()
	d.open = false
	return err
}

// Flush forces every dirty cache entry and the superblock to disk.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushLocked()
}

func (d *Device) flushLocked() error {
	if d.cache != nil {
		for _, e := range d.cache.dirtyEntries() {
			if err := d.writeRawDirect(e.addr, e.data); err != nil {
				return err
			}
		}
		d.cache.clearDirty()
	}
	return d.writeSuperblock()
}

// Superblock returns a copy of the container's current superblock.
func (d *Device) Superblock() Superblock {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.super
}

// Root returns the root index of the top-level tree.
func (d *Device) Root() BlockIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.super.RootIndex
}

// SetRoot updates the root index of the top-level tree and persists the
// superblock immediately, matching tree_write_sb's per-mutation durability.
func (d *Device) SetRoot(idx BlockIndex) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.super.RootIndex = idx
	return d.writeSuperblock()
}

// MaxSize returns the current container size in blocks, excluding the
// superblock.
func (d *Device) MaxSize() BlockIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.super.MaxSize
}

// Read returns the raw image at idx, going through the cache first
// when enabled.
func (d *Device) Read(idx BlockIndex) (RawBlock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read(idx)
}

func (d *Device) read(idx BlockIndex) (RawBlock, error) {
	if idx == 0 || idx > d.super.MaxSize {
		return RawBlock{}, ErrInvalidArgument
	}
	if d.cache != nil {
		if raw, ok := d.cache.lookup(idx); ok {
			return raw, nil
		}
	}
	raw, err := d.readRawDirect(idx)
	if err != nil {
		return RawBlock{}, err
	}
	if d.cache != nil {
		if evictAddr, evictData, ok := d.cache.evictIfOccupied(idx); ok {
			if err := d.writeRawDirect(evictAddr, evictData); err != nil {
				return RawBlock{}, err
			}
		}
		d.cache.insert(idx, raw)
	}
	return raw, nil
}

// Write stores raw at idx, going through the cache first when enabled.
func (d *Device) Write(idx BlockIndex, raw RawBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(idx, raw)
}

func (d *Device) write(idx BlockIndex, raw RawBlock) error {
	if idx == 0 || idx > d.super.MaxSize {
		return ErrInvalidArgument
	}
	if d.cache == nil {
		return d.writeRawDirect(idx, raw)
	}

	if evictAddr, evictData, ok := d.cache.evictIfOccupied(idx); ok {
		if err := d.writeRawDirect(evictAddr, evictData); err != nil {
			return err
		}
	}
	if force := d.cache.put(idx, raw); force {
		if err := d.writeRawDirect(idx, raw); err != nil {
			return err
		}
		d.cache.clearDirtyOne(idx)
	}
	return nil
}

// Grow extends the container by appending newBlocks free blocks to the
// tail of the free list (tree_grow never shrinks, per spec Non-goals).
func (d *Device) Grow(newBlocks BlockIndex) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if newBlocks == 0 {
		return ErrInvalidArgument
	}

	start := d.super.MaxSize + 1
	end := d.super.MaxSize + newBlocks

	tail, err := d.lastFreeBlock()
	if err != nil {
		return err
	}

	for i := start; i <= end; i++ {
		next := i + 1
		if i == end {
			next = 0
		}
		fb := FreeBlock{Next: next}
		if err := d.writeRawDirect(i, fb.Encode()); err != nil {
			return err
		}
	}

	if tail == 0 {
		d.super.FreeHead = start
	} else {
		raw, err := d.readRawDirect(tail)
		if err != nil {
			return err
		}
		old, err := DecodeFreeBlock(raw)
		if err != nil {
			return err
		}
		old.Next = start
		if err := d.writeRawDirect(tail, old.Encode()); err != nil {
			return err
		}
	}

	d.super.MaxSize = end
	return d.writeSuperblock()
}

// lastFreeBlock walks the free list and returns the index of its tail, or
// 0 if the free list is empty.
func (d *Device) lastFreeBlock() (BlockIndex, error) {
	cur := d.super.FreeHead
	if cur == 0 {
		return 0, nil
	}
	for {
		raw, err := d.readRawDirect(cur)
		if err != nil {
			return 0, err
		}
		fb, err := DecodeFreeBlock(raw)
		if err != nil {
			return 0, err
		}
		if fb.Next == 0 {
			return cur, nil
		}
		cur = fb.Next
	}
}

// Alloc pops a block off the free list.
func (d *Device) Alloc() (BlockIndex, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.super.FreeHead == 0 {
		return 0, ErrOutOfSpace
	}

	idx := d.super.FreeHead
	raw, err := d.readRawDirect(idx)
	if err != nil {
		return 0, err
	}
	fb, err := DecodeFreeBlock(raw)
	if err != nil {
		return 0, err
	}

	d.super.FreeHead = fb.Next
	if err := d.writeSuperblock(); err != nil {
		return 0, err
	}
	if d.cache != nil {
		d.cache.drop(idx)
	}
	return idx, nil
}

// Free pushes idx back onto the head of the free list.
func (d *Device) Free(idx BlockIndex) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx == 0 || idx > d.super.MaxSize {
		return ErrInvalidArgument
	}

	fb := FreeBlock{Next: d.super.FreeHead}
	if err := d.writeRawDirect(idx, fb.Encode()); err != nil {
		return err
	}
	if d.cache != nil {
		d.cache.drop(idx)
	}
	d.super.FreeHead = idx
	return d.writeSuperblock()
}

// CacheStats reports hit/miss counters for the optional block cache, used
// by Engine.Explain. Both are zero when caching is disabled.
func (d *Device) CacheStats() (hits, misses uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		return 0, 0
	}
	return d.cache.hits, d.cache.misses
}

func (d *Device) readRawDirect(idx BlockIndex) (RawBlock, error) {
	var raw RawBlock
	off := int64(idx) * BlockSize
	if _, err := d.file.ReadAt(raw[:], off); err != nil {
		return RawBlock{}, fmt.Errorf("blockstore: read block %d: %w", idx, err)
	}
	return raw, nil
}

func (d *Device) writeRawDirect(idx BlockIndex, raw RawBlock) error {
	off := int64(idx) * BlockSize
	if _, err := d.file.WriteAt(raw[:], off); err != nil {
		return fmt.Errorf("blockstore: write block %d: %w", idx, err)
	}
	return nil
}
