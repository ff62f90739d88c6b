package kv

import (
	"bytes"
	"fmt"

	"github.com/rickcollette/bptreedb/store"
)

// offsetSentinel marks a tree-key operand as the caller's raw probe
// key bytes rather than an offset into the backing store's record
// area. It is numerically identical to bptree.EmptyID: the spec names
// the same u32::MAX value for both "no node" and "this uint32 isn't
// really a stored offset." A real record can only land there once the
// store has grown to 4 GiB.
const offsetSentinel uint32 = 0xFFFFFFFF

// recordComparator wraps a byte-level key comparator so the core tree
// algorithms, which only ever compare uint32 keys, can order records
// by their underlying key bytes. Every call site primes one instance
// with a single probe key via withProbe before use; an instance is not
// safe to share across operations with different probe keys.
//
// Grounded directly on §4.7's comparator-adapter description; no
// teacher file separates "key bytes" from "key used for ordering"
// since kayveedb hashes keys instead of storing them as sortable
// offsets, so this adapter has no closer analogue in the pack.
type recordComparator struct {
	s       store.Store
	byBytes func(a, b []byte) int
	probe   []byte
}

// newRecordComparator creates an adapter reading records from s,
// ordering resolved key bytes with byBytes (bytes.Compare if nil).
func newRecordComparator(s store.Store, byBytes func(a, b []byte) int) *recordComparator {
	if byBytes == nil {
		byBytes = bytes.Compare
	}
	return &recordComparator{s: s, byBytes: byBytes}
}

// withProbe returns a copy of c primed with probeKey for the sentinel
// side of one tree operation.
func (c *recordComparator) withProbe(probeKey []byte) *recordComparator {
	return &recordComparator{s: c.s, byBytes: c.byBytes, probe: probeKey}
}

func (c *recordComparator) resolve(offset uint32) []byte {
	if offset == offsetSentinel {
		return c.probe
	}
	key, err := readRecordKey(c.s, uint64(offset))
	if err != nil {
		// A stored offset that cannot be read back means the backing
		// store no longer agrees with the tree's own bookkeeping: a
		// corrupted-cache condition per §7, not a caller mistake.
		panic(fmt.Sprintf("kv: record offset %d unreadable: %v", offset, err))
	}
	return key
}

// Compare implements bptree.Comparator.
func (c *recordComparator) Compare(a, b uint32) int {
	return c.byBytes(c.resolve(a), c.resolve(b))
}
