package txlog

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rickcollette/bptreedb/bptree"
	"github.com/rickcollette/bptreedb/store"
)

// NodeOffsets tracks, for one tree, the most recent on-disk offset of
// every live node by ID. This is the copy-on-write bookkeeping the
// data model calls for: a node untouched since the last flush keeps
// its prior offset and is carried forward into the new transaction
// record unchanged; only a dirty node is re-appended.
type NodeOffsets map[bptree.NodeID]uint64

// Flush appends every node cache marks dirty, then a transaction
// record listing every live node's current offset (freshly written or
// carried over), and returns that transaction's own offset. offsets
// is updated in place so the caller can pass it back into the next
// Flush.
//
// A node erased from cache between flushes (package bptree's
// rebalance calls NodeCache.Erase on merge) is dropped from offsets here too, so it
// does not linger in the next transaction record.
func Flush(s store.Store, treeID uint32, cache bptree.NodeCache, offsets NodeOffsets) (uint64, error) {
	for _, id := range cache.Dirty() {
		n, ok := cache.Get(id)
		if !ok {
			delete(offsets, id)
			continue
		}
		off, err := WriteNode(s, n)
		if err != nil {
			return 0, err
		}
		offsets[id] = off
	}
	cache.ClearDirty()

	live := make([]uint64, 0, len(offsets))
	for id, off := range offsets {
		if _, ok := cache.Get(id); !ok {
			delete(offsets, id)
			continue
		}
		live = append(live, off)
	}
	return WriteTransaction(s, Transaction{TreeID: treeID, NodeOffsets: live})
}

// Reload reconstructs one tree's node cache from the node records a
// transaction names, and returns the offsets map primed for the next
// Flush's copy-on-write bookkeeping. The root is identified as the one
// node in the transaction with no parent (every other node is reached
// by descending from it), and ID allocation resumes above the highest
// ID read back so freshly allocated IDs cannot collide with reloaded
// ones.
func Reload(s store.Store, params bptree.Params, cmp bptree.Comparator, tx Transaction) (*bptree.MemCache, NodeOffsets, error) {
	cache := bptree.NewMemCache(params, cmp, 0, nil)
	offsets := make(NodeOffsets, len(tx.NodeOffsets))

	root := bptree.EmptyID
	var maxID uint32
	for _, off := range tx.NodeOffsets {
		n, err := ReadNode(s, off)
		if err != nil {
			return nil, nil, err
		}
		cache.Put(n)
		offsets[n.ID] = off
		if n.Parent == bptree.EmptyID {
			root = n.ID
		}
		if uint32(n.ID) > maxID {
			maxID = uint32(n.ID)
		}
	}
	cache.SetRoot(root)
	cache.ClearDirty()
	if len(tx.NodeOffsets) > 0 {
		cache.SetNextID(maxID + 1)
	}
	return cache, offsets, nil
}

// TreeSource resolves the shape parameters and key ordering a tree
// was opened with, so ReloadAll can rebuild its cache without the
// caller threading per-tree config through the transaction list.
type TreeSource func(treeID uint32) (bptree.Params, bptree.Comparator)

// ReloadAll reconstructs every tree named in the transaction list at
// listOffset, one reload per tree running concurrently and bounded by
// ctx, per the concurrency model's context-bounded reload on open.
// A failure in any one tree's reload cancels the rest via errgroup and
// is returned to the caller.
func ReloadAll(ctx context.Context, s store.Store, listOffset uint64, source TreeSource) (map[uint32]*bptree.MemCache, map[uint32]NodeOffsets, error) {
	txOffsets, err := ReadTransactionList(s, listOffset)
	if err != nil {
		return nil, nil, err
	}

	caches := make(map[uint32]*bptree.MemCache, len(txOffsets))
	offsetMaps := make(map[uint32]NodeOffsets, len(txOffsets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, txOff := range txOffsets {
		txOff := txOff
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tx, err := ReadTransaction(s, txOff)
			if err != nil {
				return err
			}
			params, cmp := source(tx.TreeID)
			cache, offsets, err := Reload(s, params, cmp, tx)
			if err != nil {
				return err
			}
			mu.Lock()
			caches[tx.TreeID] = cache
			offsetMaps[tx.TreeID] = offsets
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return caches, offsetMaps, nil
}

// FlushHeader writes the transaction-list record naming the latest
// transaction offset of every tree in txOffsets, then the storage
// header pointing at it, authenticated with hmacKey. A nil hmacKey
// leaves HMACTag zeroed, matching an unauthenticated store opened
// without a key.
func FlushHeader(s store.Store, txOffsets []uint64, hmacKey []byte) error {
	listOffset, err := WriteTransactionList(s, txOffsets)
	if err != nil {
		return err
	}
	header := store.StorageHeader{
		Magic:                 store.MagicHeader,
		IsClosed:              false,
		TransactionListOffset: listOffset,
	}
	if hmacKey != nil {
		header.HMACTag = store.HMACTag(hmacKey, header.IsClosed, header.TransactionListOffset)
	}
	return s.HeaderWrite(header)
}
