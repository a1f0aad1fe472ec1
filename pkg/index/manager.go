// Package index provides secondary indexes over a tag engine's inodes,
// built entirely on pkg/bptree.Engine's own nested-tree operations rather
// than a private in-memory tree: each named index is just a reserved
// top-level anchor tag whose subkeys tree maps field values to the
// inodes that carry them.
package index

import (
	"fmt"
	"sync"

	"github.com/ssargent/tagtree/pkg/blockstore"
	"github.com/ssargent/tagtree/pkg/bptree"
)

// indexAnchorPrefix namespaces secondary-index anchor tags away from
// user-visible top-level tags.
const indexAnchorPrefix = "__index__:"

// SecondaryIndex manages a field-value -> inode mapping for one field,
// backed by a subkeys tree nested under a reserved anchor tag in the
// shared engine.
type SecondaryIndex struct {
	engine    *bptree.Engine
	fieldName string
	anchor    string
}

// NewSecondaryIndex creates a secondary index for fieldName against
// engine. The anchor tag is created lazily on first Insert.
func NewSecondaryIndex(engine *bptree.Engine, fieldName string) *SecondaryIndex {
	return &SecondaryIndex{
		engine:    engine,
		fieldName: fieldName,
		anchor:    indexAnchorPrefix + fieldName,
	}
}

// Insert associates inode with fieldValue in this index.
func (idx *SecondaryIndex) Insert(fieldValue string, inode blockstore.Inode) error {
	return idx.engine.TagNested(idx.anchor, fieldValue, inode)
}

// Delete removes the association between fieldValue and inode.
func (idx *SecondaryIndex) Delete(fieldValue string, inode blockstore.Inode) error {
	return idx.engine.UntagNested(idx.anchor, fieldValue, inode)
}

// Search returns every inode indexed under the exact fieldValue.
func (idx *SecondaryIndex) Search(fieldValue string) ([]blockstore.Inode, error) {
	inodes, err := idx.engine.GetNested(idx.anchor, fieldValue)
	if err == blockstore.ErrNotFound {
		return nil, nil
	}
	return inodes, err
}

// Count returns the number of distinct field values currently indexed.
func (idx *SecondaryIndex) Count() (int, error) {
	count, err := idx.engine.SubCount(idx.anchor)
	if err == blockstore.ErrNotFound {
		return 0, nil
	}
	return count, err
}

// Manager manages a fixed set of named secondary indexes sharing one
// engine instance.
type Manager struct {
	engine  *bptree.Engine
	mutex   sync.RWMutex
	indexes map[string]*SecondaryIndex
}

// NewManager returns a Manager operating against engine.
func NewManager(engine *bptree.Engine) *Manager {
	return &Manager{
		engine:  engine,
		indexes: make(map[string]*SecondaryIndex),
	}
}

// Index returns the named secondary index, creating its bookkeeping (but
// not yet its anchor tag, which is lazy) on first use.
func (m *Manager) Index(fieldName string) *SecondaryIndex {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if idx, ok := m.indexes[fieldName]; ok {
		return idx
	}
	idx := NewSecondaryIndex(m.engine, fieldName)
	m.indexes[fieldName] = idx
	return idx
}

// Names returns the field names of every index registered so far.
func (m *Manager) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	return names
}

// String returns a short diagnostic label of the form index(<fieldName>).
func (idx *SecondaryIndex) String() string {
	return fmt.Sprintf("index(%s)", idx.fieldName)
}
