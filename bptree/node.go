package bptree

import "sort"

// Node is a single B+ tree node: either a leaf holding (key, Value)
// pairs, or an internal node holding (separator, child-pointer) pairs.
// Capacity is 2*t (see Params); Keys and Data grow and shrink with
// append/slice operations rather than fixed arrays, the idiomatic Go
// rendition of the fixed-size buffer the spec describes.
//
// For a leaf, len(Data) == len(Keys) and Data[i] is the value for
// Keys[i]. For an internal node, len(Data) == len(Keys)+1 and Data[i]
// is the child whose subtree holds keys in [Keys[i-1], Keys[i]) (open
// on both outer ends).
type Node struct {
	ID     NodeID
	IsLeaf bool

	Parent NodeID
	Left   NodeID
	Right  NodeID

	Keys []uint32
	Data []Value
}

// NewLeaf creates an empty leaf node with the given identifier.
func NewLeaf(id NodeID) *Node {
	return &Node{
		ID:     id,
		IsLeaf: true,
		Parent: EmptyID,
		Left:   EmptyID,
		Right:  EmptyID,
	}
}

// NewInternal creates an empty internal node with the given identifier.
func NewInternal(id NodeID) *Node {
	return &Node{
		ID:     id,
		IsLeaf: false,
		Parent: EmptyID,
		Left:   EmptyID,
		Right:  EmptyID,
	}
}

// KeysCount returns the number of occupied key slots.
func (n *Node) KeysCount() int { return len(n.Keys) }

// DataCount returns the number of occupied data slots.
func (n *Node) DataCount() int { return len(n.Data) }

// IsEmpty reports whether the node holds no keys at all.
func (n *Node) IsEmpty() bool { return len(n.Keys) == 0 }

// Overflows reports whether the node has grown past the capacity for
// the given t (i.e. data_count > 2t-1, equivalently data_count >= 2t).
func (n *Node) Overflows(p Params) bool { return len(n.Data) >= p.Capacity() }

// Find implements spec §4.1 find(key): for a leaf, the value of the
// first equal key, or false; for an internal node, the child pointer
// routing key's subtree.
func (n *Node) Find(cmp Comparator, key uint32) (Value, bool) {
	if n.IsLeaf {
		idx := sort.Search(len(n.Keys), func(i int) bool { return cmp.Compare(n.Keys[i], key) >= 0 })
		if idx < len(n.Keys) && cmp.Compare(n.Keys[idx], key) == 0 {
			return n.Data[idx], true
		}
		return Value{}, false
	}
	if len(n.Keys) == 0 {
		return Value{}, false
	}
	// First i with Keys[i] > key; data[i] is the routed child. This
	// single search expresses all three branches named in the spec:
	// below the first key, at or past the last key, and the
	// right-biased equality case in between.
	idx := sort.Search(len(n.Keys), func(i int) bool { return cmp.Compare(n.Keys[i], key) > 0 })
	if idx >= len(n.Data) {
		return Value{}, false
	}
	return n.Data[idx], true
}

// FindSeparator implements spec §4.1 find_separator(key): internal
// nodes only. Returns the separator key associated with the child
// that Find(key) would route to.
func (n *Node) FindSeparator(cmp Comparator, key uint32) (uint32, bool) {
	if n.IsLeaf {
		panic("bptree: FindSeparator on leaf")
	}
	if len(n.Keys) == 0 {
		return 0, false
	}
	idx := sort.Search(len(n.Keys), func(i int) bool { return cmp.Compare(n.Keys[i], key) > 0 })
	if idx == 0 {
		return n.Keys[0], true
	}
	return n.Keys[idx-1], true
}

// InsertData shifts the tail right by one and writes (key, value) at
// index, maintaining I1/I2 provided the caller chose index correctly.
func (n *Node) InsertData(index int, key uint32, value Value) {
	n.Keys = append(n.Keys, 0)
	copy(n.Keys[index+1:], n.Keys[index:len(n.Keys)-1])
	n.Keys[index] = key

	n.insertDataOnly(index, value)
}

// InsertSeparator inserts a new (separator, child) pair into an
// internal node: the separator lands at index in Keys, and the child
// pointer lands at index+1 in Data, one past its paired separator
// (Data always holds one more entry than Keys for an internal node).
// Grounded on split.rs's insert_key_to_parent.
func (n *Node) InsertSeparator(index int, key uint32, child NodeID) {
	if n.IsLeaf {
		panic("bptree: InsertSeparator on leaf")
	}
	n.Keys = append(n.Keys, 0)
	copy(n.Keys[index+1:], n.Keys[index:len(n.Keys)-1])
	n.Keys[index] = key

	n.insertDataOnly(index+1, NewPointer(child))
}

// insertDataOnly inserts into Data alone, at the data-array index
// (which for an internal node's child pointers is one past the key
// index it corresponds to). Used by InsertData and by InsertSeparator,
// which shifts the key array itself and then places the child pointer
// here.
func (n *Node) insertDataOnly(index int, value Value) {
	n.Data = append(n.Data, Value{})
	copy(n.Data[index+1:], n.Data[index:len(n.Data)-1])
	n.Data[index] = value
}

// IndexOfChild returns the position in Data holding a pointer to
// child, or -1 if child is not a direct child of n.
func (n *Node) IndexOfChild(child NodeID) int {
	if n.IsLeaf {
		return -1
	}
	for i, v := range n.Data {
		if v.Kind() == KindPointer && v.Pointer() == child {
			return i
		}
	}
	return -1
}

// UpdateKey implements spec §4.1 update_key(child, new_key): replaces
// the separator adjacent to child. No-op for the leftmost child, whose
// subtree minimum propagates upward through a different path.
func (n *Node) UpdateKey(child NodeID, newKey uint32) {
	if n.IsLeaf {
		panic("bptree: UpdateKey on leaf")
	}
	idx := n.IndexOfChild(child)
	if idx <= 0 {
		return
	}
	n.Keys[idx-1] = newKey
}

// EraseLink implements spec §4.1 erase_link(child): removes the child
// pointer and its adjacent separator (the left one, except for the
// leftmost child, whose right separator is removed instead).
func (n *Node) EraseLink(child NodeID) {
	if n.IsLeaf {
		panic("bptree: EraseLink on leaf")
	}
	idx := n.IndexOfChild(child)
	if idx < 0 {
		panic("bptree: EraseLink: child not found")
	}
	if idx == 0 {
		if len(n.Keys) > 0 {
			n.removeKeyAt(0)
		}
		n.removeDataAt(0)
		return
	}
	n.removeKeyAt(idx - 1)
	n.removeDataAt(idx)
}

func (n *Node) removeKeyAt(i int) {
	n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
}

func (n *Node) removeDataAt(i int) {
	n.Data = append(n.Data[:i], n.Data[i+1:]...)
}

// Map applies f to every leaf entry with from <= key <= to, ascending.
func (n *Node) Map(cmp Comparator, from, to uint32, f func(key uint32, val Value)) {
	if !n.IsLeaf {
		panic("bptree: Map on internal node")
	}
	for i, k := range n.Keys {
		if cmp.Compare(k, from) >= 0 && cmp.Compare(k, to) <= 0 {
			f(k, n.Data[i])
		}
	}
}

// MapRev applies f to every leaf entry with from <= key <= to, descending.
func (n *Node) MapRev(cmp Comparator, from, to uint32, f func(key uint32, val Value)) {
	if !n.IsLeaf {
		panic("bptree: MapRev on internal node")
	}
	for i := len(n.Keys) - 1; i >= 0; i-- {
		k := n.Keys[i]
		if cmp.Compare(k, from) >= 0 && cmp.Compare(k, to) <= 0 {
			f(k, n.Data[i])
		}
	}
}

// FirstKey returns the node's first occupied key. Panics if empty.
func (n *Node) FirstKey() uint32 {
	if len(n.Keys) == 0 {
		panic("bptree: FirstKey on empty node")
	}
	return n.Keys[0]
}

// clone returns a shallow copy of n with independent slice backing,
// used when a node must be split or otherwise mutated without
// aliasing the original's arrays.
func (n *Node) clone() *Node {
	cp := *n
	cp.Keys = append([]uint32(nil), n.Keys...)
	cp.Data = append([]Value(nil), n.Data...)
	return &cp
}
