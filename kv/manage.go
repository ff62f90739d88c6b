package kv

import (
	"fmt"
	"sync"
)

// TreeManager tracks named trees sharing one engine's backing store,
// each bound to a numeric tree_id and an optional byte-level key
// comparator. Grounded on lib/manage.go's DatabaseManager
// (CreateDatabase/DropDatabase/UseDatabase/ShowDatabases), repurposed
// from a directory per database to a tree_id per name inside one
// shared store.
type TreeManager struct {
	mu          sync.Mutex
	byName      map[string]uint32
	byID        map[uint32]string
	comparators map[uint32]func(a, b []byte) int
	nextID      uint32
	current     string
}

// NewTreeManager creates an empty tree registry.
func NewTreeManager() *TreeManager {
	return &TreeManager{
		byName:      make(map[string]uint32),
		byID:        make(map[uint32]string),
		comparators: make(map[uint32]func(a, b []byte) int),
	}
}

// CreateTree registers a new named tree and returns its id. byBytes
// may be nil to fall back to lexicographic byte ordering.
func (tm *TreeManager) CreateTree(name string, byBytes func(a, b []byte) int) (uint32, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if _, exists := tm.byName[name]; exists {
		return 0, fmt.Errorf("kv: tree %q already exists", name)
	}
	id := tm.nextID
	tm.nextID++
	tm.byName[name] = id
	tm.byID[id] = name
	tm.comparators[id] = byBytes
	return id, nil
}

// DropTree removes a tree's name-to-id registration. It does not erase
// the tree's nodes from the backing store; reclaiming that space is a
// compaction concern outside this engine's scope.
func (tm *TreeManager) DropTree(name string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	id, exists := tm.byName[name]
	if !exists {
		return fmt.Errorf("kv: tree %q does not exist", name)
	}
	delete(tm.byName, name)
	delete(tm.byID, id)
	delete(tm.comparators, id)
	if tm.current == name {
		tm.current = ""
	}
	return nil
}

// UseTree marks name as the current tree, for callers that want a
// default without naming a tree_id on every call.
func (tm *TreeManager) UseTree(name string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if _, exists := tm.byName[name]; !exists {
		return fmt.Errorf("kv: tree %q does not exist", name)
	}
	tm.current = name
	return nil
}

// CurrentTree returns the name last passed to UseTree, or "" if none.
func (tm *TreeManager) CurrentTree() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.current
}

// ListTrees returns every registered tree name.
func (tm *TreeManager) ListTrees() []string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	names := make([]string, 0, len(tm.byName))
	for name := range tm.byName {
		names = append(names, name)
	}
	return names
}

// IDFor returns the tree_id registered for name.
func (tm *TreeManager) IDFor(name string) (uint32, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	id, ok := tm.byName[name]
	return id, ok
}

func (tm *TreeManager) comparatorFor(id uint32) func(a, b []byte) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.comparators[id]
}

// registerReloaded records a tree_id recovered from a cold reload
// under a synthetic name, so it stays reachable via ListTrees/IDFor
// even though its original name (kept only in the caller's memory,
// never persisted) is gone.
func (tm *TreeManager) registerReloaded(id uint32) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if _, exists := tm.byID[id]; exists {
		return
	}
	name := fmt.Sprintf("tree-%d", id)
	tm.byID[id] = name
	tm.byName[name] = id
	if id >= tm.nextID {
		tm.nextID = id + 1
	}
}
