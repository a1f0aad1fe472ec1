package bptree

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

// Engine is the top-level handle applications open: a container plus the
// tree/dispatcher pair operating against its top-level tree. Every
// top-level key's data block may itself anchor a nested subkeys tree,
// reached via the Sub* methods.
type Engine struct {
	dev        *blockstore.Device
	dispatcher *Dispatcher
	sessionID  ksuid.KSUID
}

// Open opens (or formats) the container at path and returns a ready
// Engine.
func Open(path string, opts blockstore.Options) (*Engine, error) {
	dev, err := blockstore.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("bptree: open: %w", err)
	}
	return &Engine{
		dev:        dev,
		dispatcher: NewDispatcher(dev),
		sessionID:  ksuid.New(),
	}, nil
}

// Close flushes and closes the underlying container.
func (e *Engine) Close() error {
	return e.dev.Close()
}

// SessionID identifies this open session, stamped into ExplainResult for
// diagnostic correlation across log lines.
func (e *Engine) SessionID() ksuid.KSUID {
	return e.sessionID
}

// Grow extends the container by newBlocks free blocks.
func (e *Engine) Grow(newBlocks blockstore.BlockIndex) error {
	return e.dev.Grow(newBlocks)
}

// Root returns the root block of the top-level tree.
func (e *Engine) Root() blockstore.BlockIndex {
	return e.dev.Root()
}

// Min returns the lexicographically smallest top-level key and its data
// block.
func (e *Engine) Min() (blockstore.Key, blockstore.BlockIndex, error) {
	return e.dispatcher.tree.Min(e.dev.Root())
}

// CountKeys returns the number of keys in the top-level tree.
func (e *Engine) CountKeys() (int, error) {
	return e.dispatcher.tree.CountKeys(e.dev.Root())
}

// Search looks up key in the top-level tree and returns its data block.
func (e *Engine) Search(key string) (blockstore.BlockIndex, error) {
	return e.dispatcher.Search(e.dev.Root(), blockstore.NewKey(key))
}

// Get returns the inodes tagged with key.
func (e *Engine) Get(key string) ([]blockstore.Inode, error) {
	dataBlock, err := e.Search(key)
	if err != nil {
		return nil, err
	}
	return e.dispatcher.ListInodes(dataBlock)
}

// Insert ensures key exists as a top-level tag and returns its data
// block, creating the key (and a fresh, empty data block) if necessary.
func (e *Engine) Insert(key string) (blockstore.BlockIndex, error) {
	newRoot, dataBlock, err := e.dispatcher.Insert(e.dev.Root(), blockstore.NewKey(key))
	if err != nil {
		return 0, err
	}
	if newRoot != e.dev.Root() {
		if err := e.dev.SetRoot(newRoot); err != nil {
			return 0, err
		}
	}
	return dataBlock, nil
}

// Tag associates inode with key, creating key if it does not already
// exist.
func (e *Engine) Tag(key string, inode blockstore.Inode) error {
	dataBlock, err := e.Insert(key)
	if err != nil {
		return err
	}
	return e.dispatcher.AddInode(dataBlock, inode)
}

// Untag removes the association between inode and key, leaving the key
// itself (and any subkeys tree) intact.
func (e *Engine) Untag(key string, inode blockstore.Inode) error {
	dataBlock, err := e.Search(key)
	if err != nil {
		return err
	}
	return e.dispatcher.RemoveInode(dataBlock, inode)
}

// Remove deletes key from the top level entirely. Fails with
// blockstore.ErrNotEmpty if key still has a non-empty subkeys tree.
func (e *Engine) Remove(key string) error {
	newRoot, err := e.dispatcher.Remove(e.dev.Root(), blockstore.NewKey(key))
	if err != nil {
		return err
	}
	if newRoot != e.dev.Root() {
		return e.dev.SetRoot(newRoot)
	}
	return nil
}

// SubSearch resolves a nested key under parentKey's subkeys tree.
func (e *Engine) SubSearch(parentKey, key string) (blockstore.BlockIndex, error) {
	parentData, err := e.Search(parentKey)
	if err != nil {
		return 0, err
	}
	return e.dispatcher.SubSearch(parentData, blockstore.NewKey(key))
}

// SubInsert ensures a nested key exists under parentKey's subkeys tree,
// creating both the subtree and the nested key's own data block on
// first use.
func (e *Engine) SubInsert(parentKey, key string) (blockstore.BlockIndex, error) {
	parentData, err := e.Search(parentKey)
	if err != nil {
		return 0, err
	}
	return e.dispatcher.SubInsert(parentData, blockstore.NewKey(key))
}

// SubRemove deletes a nested key from parentKey's subkeys tree.
func (e *Engine) SubRemove(parentKey, key string) error {
	parentData, err := e.Search(parentKey)
	if err != nil {
		return err
	}
	return e.dispatcher.SubRemove(parentData, blockstore.NewKey(key))
}

// SubCount returns the number of nested keys under parentKey.
func (e *Engine) SubCount(parentKey string) (int, error) {
	parentData, err := e.Search(parentKey)
	if err != nil {
		return 0, err
	}
	return e.dispatcher.SubCount(parentData)
}

// TagNested associates inode with a nested key under parentKey, creating
// both the parent tag and the nested key on first use. Secondary indexes
// (pkg/index) build on this to maintain a field-value -> inode tree
// nested under a reserved top-level anchor tag.
func (e *Engine) TagNested(parentKey, key string, inode blockstore.Inode) error {
	parentData, err := e.Insert(parentKey)
	if err != nil {
		return err
	}
	dataBlock, err := e.dispatcher.SubInsert(parentData, blockstore.NewKey(key))
	if err != nil {
		return err
	}
	return e.dispatcher.AddInode(dataBlock, inode)
}

// UntagNested removes inode from a nested key under parentKey.
func (e *Engine) UntagNested(parentKey, key string, inode blockstore.Inode) error {
	dataBlock, err := e.SubSearch(parentKey, key)
	if err != nil {
		return err
	}
	return e.dispatcher.RemoveInode(dataBlock, inode)
}

// GetNested returns the inodes associated with a nested key under
// parentKey.
func (e *Engine) GetNested(parentKey, key string) ([]blockstore.Inode, error) {
	dataBlock, err := e.SubSearch(parentKey, key)
	if err != nil {
		return nil, err
	}
	return e.dispatcher.ListInodes(dataBlock)
}

// CreateSynonym makes key an alias for target, rather than an independent
// tag with its own subkeys tree.
func (e *Engine) CreateSynonym(key, target string) error {
	dataBlock, err := e.Insert(key)
	if err != nil {
		return err
	}
	return e.dispatcher.CreateSynonym(dataBlock, target)
}

// ExplainResult summarizes a container's structural health for
// diagnostics: block accounting, free-list length, and cache
// effectiveness.
type ExplainResult struct {
	SessionID  ksuid.KSUID
	MaxSize    blockstore.BlockIndex
	RootIndex  blockstore.BlockIndex
	KeyCount   int
	FreeBlocks int
	CacheHits  uint64
	CacheMiss  uint64
}

// Explain walks the container's free list and top-level tree to produce a
// real structural summary, replacing the stubbed statistics the teacher
// store reported.
func (e *Engine) Explain() (ExplainResult, error) {
	sb := e.dev.Superblock()

	free := 0
	cur := sb.FreeHead
	for cur != 0 {
		raw, err := e.dev.Read(cur)
		if err != nil {
			return ExplainResult{}, err
		}
		fb, err := blockstore.DecodeFreeBlock(raw)
		if err != nil {
			return ExplainResult{}, err
		}
		free++
		cur = fb.Next
	}

	keyCount, err := e.CountKeys()
	if err != nil {
		return ExplainResult{}, err
	}

	hits, misses := e.dev.CacheStats()
	return ExplainResult{
		SessionID:  e.sessionID,
		MaxSize:    sb.MaxSize,
		RootIndex:  sb.RootIndex,
		KeyCount:   keyCount,
		FreeBlocks: free,
		CacheHits:  hits,
		CacheMiss:  misses,
	}, nil
}
