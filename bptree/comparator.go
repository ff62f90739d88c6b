package bptree

// Comparator defines a total order over the uint32 keys stored in a
// tree's nodes. Every tree is bound to exactly one Comparator at
// creation; the multi-tree façade (package kv) supplies one per tree
// and additionally wraps it so stored keys, which are really byte-store
// offsets, resolve to their underlying key bytes before comparison.
//
// Compare returns a negative number if a < b, zero if a == b, and a
// positive number if a > b — the same convention as sort.Interface's
// Less, generalized to three-way comparison since the tree needs
// equality as a distinct outcome from ordering.
type Comparator interface {
	Compare(a, b uint32) int
}

// NaturalOrder compares raw uint32 keys by their natural numeric
// order. It is the default comparator for trees that store integer
// keys directly rather than offsets into an external record store.
type NaturalOrder struct{}

// Compare implements Comparator.
func (NaturalOrder) Compare(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ComparatorFunc adapts a plain function to the Comparator interface.
type ComparatorFunc func(a, b uint32) int

// Compare implements Comparator.
func (f ComparatorFunc) Compare(a, b uint32) int { return f(a, b) }
