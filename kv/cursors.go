package kv

import (
	"sync"

	"github.com/rickcollette/bptreedb/bptree"
)

// CursorManager tracks open range cursors under a caller-opaque
// handle, so a façade consumer can count or forcibly close cursors
// left open across goroutines. Grounded on lib/clients.go's
// ClientManager (map + mutex, add/remove/count), repurposed from
// tracking client connections to tracking open bptree.Cursor handles.
type CursorManager struct {
	mu      sync.Mutex
	cursors map[uint64]*bptree.Cursor
	nextID  uint64
}

// NewCursorManager creates an empty cursor registry.
func NewCursorManager() *CursorManager {
	return &CursorManager{cursors: make(map[uint64]*bptree.Cursor)}
}

// Open registers cur under a fresh handle and returns it.
func (cm *CursorManager) Open(cur *bptree.Cursor) uint64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	id := cm.nextID
	cm.nextID++
	cm.cursors[id] = cur
	return id
}

// Get returns the cursor registered under handle, if still open.
func (cm *CursorManager) Get(handle uint64) (*bptree.Cursor, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	c, ok := cm.cursors[handle]
	return c, ok
}

// Close drops handle from the open set.
func (cm *CursorManager) Close(handle uint64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.cursors, handle)
}

// OpenCount reports how many cursors are currently open.
func (cm *CursorManager) OpenCount() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.cursors)
}
