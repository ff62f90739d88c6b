package bptree

import (
	"container/list"
	"sync"
)

// NodeCache is the handle-addressable node store the algorithms in this
// package operate over. One NodeCache backs exactly one tree: node
// identifiers are only meaningful within the cache that allocated them.
// Implementations are responsible for durability; MemCache below keeps
// everything resident and is used directly by tests and by package kv
// before a flush, which owns the copy-on-write bookkeeping described in
// the data model (unchanged nodes keep their prior offset across a
// flush; only nodes marked dirty here get re-appended).
type NodeCache interface {
	// Params returns the tree-shape parameters this cache was opened with.
	Params() Params
	// Comparator returns the key ordering this cache's tree uses.
	Comparator() Comparator

	// Root returns the current root node identifier, or EmptyID before
	// any node has been created. A tree emptied by removals keeps its
	// empty leaf as the root.
	Root() NodeID
	// SetRoot updates the root node identifier.
	SetRoot(id NodeID)

	// NewID allocates a fresh, previously unused node identifier.
	NewID() NodeID

	// Get returns the node for id, or false if no such node exists.
	Get(id NodeID) (*Node, bool)
	// Put stores (or replaces) the node under its own ID and marks it
	// dirty, i.e. due a fresh append on the next flush.
	Put(n *Node)
	// Erase removes a node from the cache entirely.
	Erase(id NodeID)

	// Dirty reports the IDs of all nodes added or modified via Put since
	// the last call to ClearDirty.
	Dirty() []NodeID
	// ClearDirty resets the dirty set, normally called by the package
	// that just flushed those nodes to a backing store.
	ClearDirty()
}

// MemCache is an in-memory NodeCache, an LRU-tracked map from NodeID to
// *Node. Grounded on the teacher's lib/kayveedb.go Cache/CacheEntry:
// sync.Map for concurrent lookups, a container/list for recency order,
// and a per-entry dirty flag. Unlike the teacher's cache, eviction is
// disabled by default (size <= 0): the node cache is the only copy of
// the tree's shape between flushes, so evicting without writing through
// would lose data. A positive size enables LRU eviction with a flush
// callback, for callers that want bounded memory and can supply a safe
// flush-on-evict; package txlog always passes size 0.
type MemCache struct {
	mu    sync.Mutex
	store sync.Map // NodeID -> *cacheEntry
	order *list.List

	size    int
	nextID  uint32
	root    NodeID
	params  Params
	cmp     Comparator
	dirty   map[NodeID]struct{}
	flushFn func(*Node) error
}

type cacheEntry struct {
	node    *Node
	element *list.Element
}

// NewMemCache creates an empty in-memory cache for a tree with the
// given shape parameters and key ordering. size <= 0 disables eviction.
func NewMemCache(params Params, cmp Comparator, size int, flushFn func(*Node) error) *MemCache {
	return &MemCache{
		order:   list.New(),
		size:    size,
		root:    EmptyID,
		params:  params,
		cmp:     cmp,
		dirty:   make(map[NodeID]struct{}),
		flushFn: flushFn,
	}
}

func (c *MemCache) Params() Params         { return c.params }
func (c *MemCache) Comparator() Comparator { return c.cmp }
func (c *MemCache) Root() NodeID           { return c.root }
func (c *MemCache) SetRoot(id NodeID)      { c.root = id }

func (c *MemCache) NewID() NodeID {
	id := NodeID(c.nextID)
	c.nextID++
	return id
}

// SetNextID resumes ID allocation from next, used by package txlog
// after reloading a cache from disk so freshly-allocated IDs don't
// collide with nodes that were just read back.
func (c *MemCache) SetNextID(next uint32) { c.nextID = next }

func (c *MemCache) Get(id NodeID) (*Node, bool) {
	v, ok := c.store.Load(id)
	if !ok {
		return nil, false
	}
	entry := v.(*cacheEntry)
	c.mu.Lock()
	c.order.MoveToFront(entry.element)
	c.mu.Unlock()
	return entry.node, true
}

func (c *MemCache) Put(n *Node) {
	if v, ok := c.store.Load(n.ID); ok {
		entry := v.(*cacheEntry)
		entry.node = n
		c.mu.Lock()
		c.order.MoveToFront(entry.element)
		c.mu.Unlock()
	} else {
		if c.size > 0 {
			c.mu.Lock()
			for c.order.Len() >= c.size {
				c.evictLocked()
			}
			c.mu.Unlock()
		}
		c.mu.Lock()
		element := c.order.PushFront(n.ID)
		c.mu.Unlock()
		c.store.Store(n.ID, &cacheEntry{node: n, element: element})
	}
	c.dirty[n.ID] = struct{}{}
}

func (c *MemCache) Erase(id NodeID) {
	if v, ok := c.store.Load(id); ok {
		entry := v.(*cacheEntry)
		c.mu.Lock()
		c.order.Remove(entry.element)
		c.mu.Unlock()
		c.store.Delete(id)
	}
	delete(c.dirty, id)
}

func (c *MemCache) Dirty() []NodeID {
	ids := make([]NodeID, 0, len(c.dirty))
	for id := range c.dirty {
		ids = append(ids, id)
	}
	return ids
}

func (c *MemCache) ClearDirty() {
	c.dirty = make(map[NodeID]struct{})
}

// evictLocked flushes and drops the least-recently-touched node. Caller
// holds c.mu. Only called when size > 0, so c.flushFn must be non-nil.
func (c *MemCache) evictLocked() {
	tail := c.order.Back()
	if tail == nil {
		return
	}
	id := tail.Value.(NodeID)
	v, ok := c.store.Load(id)
	if !ok {
		return
	}
	entry := v.(*cacheEntry)
	if _, isDirty := c.dirty[id]; isDirty && c.flushFn != nil {
		c.flushFn(entry.node)
		delete(c.dirty, id)
	}
	c.order.Remove(tail)
	c.store.Delete(id)
}
