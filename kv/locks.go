package kv

import "sync"

// TreeLocks guards each tree's write path with its own mutex, the
// façade-level guard rail the concurrency model calls for: the core
// tree algorithms take no locks of their own (§5), so a careless
// caller issuing overlapping writes against the same tree from
// multiple goroutines is serialized here instead. Grounded on
// lib/auth.go's AuthManager (map + mutex, CRUD-shaped access),
// repurposed from a user registry to a per-tree-id mutex registry.
type TreeLocks struct {
	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

// NewTreeLocks creates an empty lock registry.
func NewTreeLocks() *TreeLocks {
	return &TreeLocks{locks: make(map[uint32]*sync.Mutex)}
}

// Lock acquires (creating on first use) the mutex for treeID and
// returns a function that releases it.
func (tl *TreeLocks) Lock(treeID uint32) func() {
	tl.mu.Lock()
	l, ok := tl.locks[treeID]
	if !ok {
		l = &sync.Mutex{}
		tl.locks[treeID] = l
	}
	tl.mu.Unlock()

	l.Lock()
	return l.Unlock
}
