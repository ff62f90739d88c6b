package kv

import (
	"fmt"

	"github.com/rickcollette/bptreedb/bptree"
)

// OpenCursor opens a resumable forward range cursor over treeID for
// keys in [fromBytes, toBytes], returning an opaque handle. The bounds
// are themselves written into the record area so the tree's core
// uint32 comparator can order against them like any other stored key,
// mirroring how Insert/Find/Remove resolve a caller's bytes to an
// offset before calling into bptree. Per spec §4.2's map/map_rev
// surfaced one entry at a time, as lib/clients.go's handle-registry
// pattern does for client connections.
func (e *Engine) OpenCursor(treeID uint32, fromBytes, toBytes []byte) (handle uint64, err error) {
	ts, err := e.treeState(treeID)
	if err != nil {
		return 0, err
	}

	fromOffset, err := writeRecord(e.store, fromBytes, nil)
	if err != nil {
		return 0, fmt.Errorf("kv: write cursor lower bound: %w", err)
	}
	toOffset, err := writeRecord(e.store, toBytes, nil)
	if err != nil {
		return 0, fmt.Errorf("kv: write cursor upper bound: %w", err)
	}

	boundCache := &comparatorOverride{NodeCache: ts.cache, cmp: ts.cmp}
	cur, err := bptree.NewCursor(boundCache, ts.cache.Root(), uint32(fromOffset), uint32(toOffset))
	if err != nil {
		return 0, fmt.Errorf("kv: open cursor: %w", err)
	}
	return e.cursors.Open(cur), nil
}

// CursorNext returns the next (key, value) pair from an open cursor,
// or ok == false once the range is exhausted.
func (e *Engine) CursorNext(handle uint64) (key, value []byte, ok bool, err error) {
	cur, exists := e.cursors.Get(handle)
	if !exists {
		return nil, nil, false, fmt.Errorf("kv: unknown cursor handle %d", handle)
	}
	_, val, done := cur.Next()
	if done {
		return nil, nil, false, nil
	}
	key, value, err = readRecord(e.store, uint64(val.Payload()))
	if err != nil {
		return nil, nil, false, fmt.Errorf("kv: read record: %w", err)
	}
	return key, value, true, nil
}

// CloseCursor releases a cursor handle opened via OpenCursor.
func (e *Engine) CloseCursor(handle uint64) {
	e.cursors.Close(handle)
}

// OpenCursorCount reports how many cursors are currently open across
// every tree, for callers that want to enforce a resource ceiling.
func (e *Engine) OpenCursorCount() int {
	return e.cursors.OpenCount()
}
