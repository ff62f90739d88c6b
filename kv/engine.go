// Package kv is the multi-tree façade: it owns one flat backing store
// shared by many named trees, translates byte-oriented insert/find/
// remove calls into the core bptree package's uint32-keyed algorithms
// via the record-offset comparator adapter, and layers on the
// ambient concerns (lifecycle management, per-tree locking, flush
// notification, metrics) described in SPEC_FULL.md's Multi-tree
// façade and Ambient Stack sections. Grounded on the teacher's
// top-level kayveedb.go package doc comment and its lib/kayveedb.go
// BTree type, generalized from one in-process tree to many sharing a
// disk-offset-addressed node cache.
package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/rickcollette/bptreedb/bptree"
	"github.com/rickcollette/bptreedb/config"
	"github.com/rickcollette/bptreedb/store"
	"github.com/rickcollette/bptreedb/txlog"
)

// treeState holds one tree's live cache plus the copy-on-write offset
// bookkeeping and comparator needed to query and flush it.
type treeState struct {
	cache   *bptree.MemCache
	offsets txlog.NodeOffsets
	cmp     *recordComparator
}

// Engine is the multi-tree façade described in SPEC_FULL.md §4.7.
type Engine struct {
	store   store.Store
	cfg     *config.Config
	hmacKey []byte

	treesMu sync.Mutex
	trees   map[uint32]*treeState

	// lastTxOffset remembers every tree's most recent transaction
	// offset across the engine's lifetime, so a flush of one tree can
	// still rewrite a transaction list naming every tree's latest
	// transaction, per §4.6's "one transaction list" reload contract.
	lastTxOffset map[uint32]uint64

	manager  *TreeManager
	locks    *TreeLocks
	cursors  *CursorManager
	notifier *FlushNotifier
	metrics  *Metrics
}

// Open attaches an Engine to s. If s already carries a valid,
// HMAC-verified header, every named tree's latest transaction is
// reloaded concurrently (bounded by ctx per §5); a fresh store starts
// with no trees. hmacKey may be nil to skip header authentication.
func Open(ctx context.Context, s store.Store, cfg *config.Config, hmacKey []byte) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		store:    s,
		cfg:      cfg,
		hmacKey:  hmacKey,
		trees:    make(map[uint32]*treeState),
		manager:  NewTreeManager(),
		locks:    NewTreeLocks(),
		cursors:  NewCursorManager(),
		notifier: NewFlushNotifier(),
	}
	if cfg.MetricsEnabled {
		e.metrics = NewMetrics()
	}

	header, err := s.HeaderRead()
	if err != nil || header.Magic != store.MagicHeader {
		// Fresh store: reserve the params trailer at offset 0 before any
		// tree data gets appended, per the persisted layout's "on create"
		// contract.
		if err := s.ParamsWrite(store.StorageParams{TreeParams: cfg.StorageTreeParams()}); err != nil {
			return nil, fmt.Errorf("kv: write params trailer: %w", err)
		}
		return e, nil
	}
	if hmacKey != nil && !store.VerifyHMACTag(hmacKey, header) {
		return nil, fmt.Errorf("kv: header HMAC verification failed")
	}

	// The on-disk params trailer, not the caller's config, is the
	// source of truth for tree shape on reopen: a caller-supplied or
	// defaulted Config must never silently reshape already-persisted
	// trees.
	storedParams, err := s.ParamsRead()
	if err != nil {
		return nil, fmt.Errorf("kv: read params trailer: %w", err)
	}
	params := bptree.Params{
		T:           int(storedParams.TreeParams.T),
		MinSizeRoot: int(storedParams.TreeParams.MinSizeRoot),
		MinSizeLeaf: int(storedParams.TreeParams.MinSizeLeaf),
		MinSizeNode: int(storedParams.TreeParams.MinSizeNode),
	}
	cfg.TreeParams.T = params.T
	cfg.TreeParams.MinSizeRoot = params.MinSizeRoot
	cfg.TreeParams.MinSizeLeaf = params.MinSizeLeaf
	cfg.TreeParams.MinSizeNode = params.MinSizeNode

	source := func(treeID uint32) (bptree.Params, bptree.Comparator) {
		return params, newRecordComparator(s, e.manager.comparatorFor(treeID))
	}
	caches, offsetMaps, err := txlog.ReloadAll(ctx, s, header.TransactionListOffset, source)
	if err != nil {
		return nil, fmt.Errorf("kv: reload: %w", err)
	}
	for treeID, cache := range caches {
		e.manager.registerReloaded(treeID)
		e.trees[treeID] = &treeState{
			cache:   cache,
			offsets: offsetMaps[treeID],
			cmp:     newRecordComparator(s, e.manager.comparatorFor(treeID)),
		}
	}

	// Remember every tree's latest transaction offset so the first
	// flush after reopen can still name every tree in a fresh
	// transaction list, not just whichever tree flushed first.
	txOffsets, err := txlog.ReadTransactionList(s, header.TransactionListOffset)
	if err != nil {
		return nil, fmt.Errorf("kv: reload transaction list: %w", err)
	}
	e.lastTxOffset = make(map[uint32]uint64, len(txOffsets))
	for _, off := range txOffsets {
		tx, err := txlog.ReadTransaction(s, off)
		if err != nil {
			return nil, fmt.Errorf("kv: reload transaction: %w", err)
		}
		e.lastTxOffset[tx.TreeID] = off
	}
	return e, nil
}

// CreateTree registers a new named tree with an empty cache. byBytes
// may be nil to use lexicographic byte ordering.
func (e *Engine) CreateTree(name string, byBytes func(a, b []byte) int) (uint32, error) {
	id, err := e.manager.CreateTree(name, byBytes)
	if err != nil {
		return 0, err
	}
	e.treesMu.Lock()
	e.trees[id] = &treeState{
		cache:   bptree.NewMemCache(e.cfg.TreeShape(), bptree.NaturalOrder{}, e.cfg.NodeCacheBound, nil),
		offsets: make(txlog.NodeOffsets),
		cmp:     newRecordComparator(e.store, byBytes),
	}
	e.treesMu.Unlock()
	return id, nil
}

func (e *Engine) treeState(treeID uint32) (*treeState, error) {
	e.treesMu.Lock()
	defer e.treesMu.Unlock()
	ts, ok := e.trees[treeID]
	if !ok {
		return nil, fmt.Errorf("kv: unknown tree_id %d", treeID)
	}
	return ts, nil
}

// Insert appends (keyBytes, valueBytes) as a fresh record and inserts
// its offset into treeID's tree under a comparator primed with
// keyBytes, then flushes the tree's dirty nodes. Per §4.7.
func (e *Engine) Insert(treeID uint32, keyBytes, valueBytes []byte) (err error) {
	start := time.Now()
	defer func() { e.metrics.RecordOp("insert", err, time.Since(start)) }()

	unlock := e.locks.Lock(treeID)
	defer unlock()

	ts, err := e.treeState(treeID)
	if err != nil {
		return err
	}

	recordOffset, err := writeRecord(e.store, keyBytes, valueBytes)
	if err != nil {
		return fmt.Errorf("kv: write record: %w", err)
	}

	probed := ts.cmp.withProbe(keyBytes)
	probedCache := &comparatorOverride{NodeCache: ts.cache, cmp: probed}

	root, err := bptree.Insert(probedCache, ts.cache.Root(), uint32(recordOffset), bptree.NewValue(uint32(recordOffset)))
	if err != nil {
		return fmt.Errorf("kv: insert: %w", err)
	}
	ts.cache.SetRoot(root)

	return e.flushTree(treeID, ts)
}

// Find looks up keyBytes in treeID, returning the stored value bytes
// and whether a match was found. Per §4.7. The lookup runs against the
// tree's in-memory node cache, which Insert and Remove keep current and
// Open rebuilds from the store; Find itself does not reread the store.
func (e *Engine) Find(treeID uint32, keyBytes []byte) (value []byte, found bool, err error) {
	start := time.Now()
	defer func() { e.metrics.RecordOp("find", err, time.Since(start)) }()

	ts, err := e.treeState(treeID)
	if err != nil {
		return nil, false, err
	}

	probed := ts.cmp.withProbe(keyBytes)
	probedCache := &comparatorOverride{NodeCache: ts.cache, cmp: probed}

	v, found, err := bptree.Find(probedCache, ts.cache.Root(), offsetSentinel)
	if err != nil || !found {
		return nil, found, err
	}
	_, value, err = readRecord(e.store, uint64(v.Payload()))
	if err != nil {
		return nil, false, fmt.Errorf("kv: read record: %w", err)
	}
	return value, true, nil
}

// Remove erases keyBytes from treeID's tree, then flushes. Per §4.7.
func (e *Engine) Remove(treeID uint32, keyBytes []byte) (err error) {
	start := time.Now()
	defer func() { e.metrics.RecordOp("remove", err, time.Since(start)) }()

	unlock := e.locks.Lock(treeID)
	defer unlock()

	ts, err := e.treeState(treeID)
	if err != nil {
		return err
	}

	probed := ts.cmp.withProbe(keyBytes)
	probedCache := &comparatorOverride{NodeCache: ts.cache, cmp: probed}

	root, err := bptree.Remove(probedCache, ts.cache.Root(), offsetSentinel)
	if err != nil {
		return fmt.Errorf("kv: remove: %w", err)
	}
	ts.cache.SetRoot(root)

	return e.flushTree(treeID, ts)
}

// flushTree appends treeID's dirty nodes and a fresh transaction
// record, rewrites the transaction list and header, and notifies
// subscribers. The correlation id is for log/metric correlation only
// and is never part of the persisted format.
func (e *Engine) flushTree(treeID uint32, ts *treeState) error {
	correlationID := ksuid.New()

	txOffset, err := txlog.Flush(e.store, treeID, ts.cache, ts.offsets)
	if err != nil {
		return fmt.Errorf("kv: flush %s: %w", correlationID, err)
	}

	txOffsets := e.collectTransactionOffsets(treeID, txOffset)
	if err := txlog.FlushHeader(e.store, txOffsets, e.hmacKey); err != nil {
		return fmt.Errorf("kv: flush header %s: %w", correlationID, err)
	}
	if header, err := e.store.HeaderRead(); err == nil {
		params, err := e.store.ParamsRead()
		if err != nil {
			return fmt.Errorf("kv: read params trailer %s: %w", correlationID, err)
		}
		params.Offset = header.TransactionListOffset
		if err := e.store.ParamsWrite(params); err != nil {
			return fmt.Errorf("kv: write params trailer %s: %w", correlationID, err)
		}
	}

	if e.metrics != nil {
		e.metrics.RecordFlush(fmt.Sprintf("%d", treeID))
		e.metrics.SetNodeCacheSize(fmt.Sprintf("%d", treeID), len(ts.offsets))
	}
	e.notifier.Publish(FlushEvent{TreeID: treeID, Offset: txOffset})
	return nil
}

// collectTransactionOffsets tracks the most recent transaction offset
// per tree_id across the engine's lifetime, so FlushHeader can name
// every tree's latest transaction even though only one tree flushed
// just now.
func (e *Engine) collectTransactionOffsets(justFlushed uint32, justOffset uint64) []uint64 {
	e.treesMu.Lock()
	defer e.treesMu.Unlock()
	if e.lastTxOffset == nil {
		e.lastTxOffset = make(map[uint32]uint64)
	}
	e.lastTxOffset[justFlushed] = justOffset
	offsets := make([]uint64, 0, len(e.lastTxOffset))
	for _, off := range e.lastTxOffset {
		offsets = append(offsets, off)
	}
	return offsets
}

// Close marks the store cleanly closed and releases it.
func (e *Engine) Close() error {
	if params, err := e.store.ParamsRead(); err == nil {
		params.IsClosed = true
		if err := e.store.ParamsWrite(params); err != nil {
			return err
		}
	}
	header, err := e.store.HeaderRead()
	if err == nil && header.Magic == store.MagicHeader {
		header.IsClosed = true
		if e.hmacKey != nil {
			header.HMACTag = store.HMACTag(e.hmacKey, header.IsClosed, header.TransactionListOffset)
		}
		if err := e.store.HeaderWrite(header); err != nil {
			return err
		}
	}
	if err := e.store.Flush(); err != nil {
		return err
	}
	return e.store.Close()
}

// comparatorOverride is a NodeCache that reports a caller-supplied
// Comparator instead of the cache's own, so one Insert/Find/Remove
// call can run against a comparator freshly primed with that call's
// probe key without mutating the tree's stored comparator.
type comparatorOverride struct {
	bptree.NodeCache
	cmp bptree.Comparator
}

func (c *comparatorOverride) Comparator() bptree.Comparator { return c.cmp }
