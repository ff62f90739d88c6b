package bptree

// Insert implements spec §4.3 insert(key, value): descends to the
// target leaf, overwrites an existing equal key in place (the R1
// duplicate-key policy this tree commits to — see the design notes),
// or inserts a new slot and splits upward as needed. Returns the
// (possibly new) root.
//
// Grounded on the original insert() in insert.rs: locate the leaf,
// write the entry, and only then check whether the node overflowed.
// The original checks capacity before writing (can_insert); this
// implementation writes first and checks Node.Overflows after, an
// equivalent reordering that lets InsertData stay a single unconditional
// shift-and-write with no separate pre-flight capacity probe.
func Insert(cache NodeCache, root NodeID, key uint32, value Value) (NodeID, error) {
	params := cache.Params()
	cmp := cache.Comparator()

	if root == EmptyID {
		leaf := NewLeaf(cache.NewID())
		leaf.InsertData(0, key, value)
		cache.Put(leaf)
		cache.SetRoot(leaf.ID)
		return leaf.ID, nil
	}

	leaf, err := Scan(cache, root, key)
	if err != nil {
		return root, err
	}

	if idx, ok := leafIndexOf(cmp, leaf, key); ok {
		leaf.Data[idx] = value
		cache.Put(leaf)
		return cache.Root(), nil
	}

	idx := insertionIndex(cmp, leaf, key)
	leaf.InsertData(idx, key, value)
	cache.Put(leaf)

	if idx == 0 && leaf.Parent != EmptyID {
		propagateMinKey(cache, leaf)
	}

	if !leaf.Overflows(params) {
		return cache.Root(), nil
	}
	return splitUp(cache, leaf)
}

// leafIndexOf returns the index of an exact key match in a leaf.
func leafIndexOf(cmp Comparator, n *Node, key uint32) (int, bool) {
	for i, k := range n.Keys {
		if cmp.Compare(k, key) == 0 {
			return i, true
		}
	}
	return 0, false
}

// insertionIndex returns the first index whose key is >= key, or
// len(Keys) if key sorts past every existing entry.
func insertionIndex(cmp Comparator, n *Node, key uint32) int {
	i := 0
	for i < len(n.Keys) && cmp.Compare(n.Keys[i], key) < 0 {
		i++
	}
	return i
}

// propagateMinKey updates the separator chain above leaf after its
// first key changed, mirroring rm/rollup.rs's role in reverse: insert
// can lower a leaf's minimum (inserting before the prior first key),
// which must be reflected in every ancestor's separator for that child.
func propagateMinKey(cache NodeCache, leaf *Node) {
	child := leaf
	newMin := leaf.FirstKey()
	for child.Parent != EmptyID {
		parent, ok := cache.Get(child.Parent)
		if !ok {
			return
		}
		parent.UpdateKey(child.ID, newMin)
		cache.Put(parent)
		if parent.IndexOfChild(child.ID) != 0 {
			return
		}
		child = parent
	}
}

// splitUp splits target and, if the split promotes a new separator
// into an already-full parent, recurses upward. Grounded on
// split.rs's split_node: a leaf split keeps the separator key as the
// new sibling's minimum; an internal split promotes the middle key
// without duplicating it in either half.
func splitUp(cache NodeCache, target *Node) (NodeID, error) {
	params := cache.Params()
	t := params.T

	var parent *Node
	isNewRoot := target.Parent == EmptyID
	if isNewRoot {
		parent = NewInternal(cache.NewID())
	} else {
		p, ok := cache.Get(target.Parent)
		if !ok {
			return cache.Root(), errNotFound("splitUp: parent %s not found", target.Parent)
		}
		parent = p
	}

	sibling := target.clone()
	sibling.ID = cache.NewID()

	var separator uint32
	if target.IsLeaf {
		// Keys and Data both run the full 2t entries; split them evenly,
		// and the promoted separator is simply the right half's minimum.
		sibling.Keys = append([]uint32(nil), target.Keys[t:]...)
		sibling.Data = append([]Value(nil), target.Data[t:]...)
		target.Keys = target.Keys[:t]
		target.Data = target.Data[:t]
		separator = sibling.FirstKey()
	} else {
		// Keys run 2t-1 entries (Data runs 2t, one more child than
		// separators); the middle key at t-1 is promoted to the parent
		// and appears in neither half, per split.rs's split_node.
		middleIdx := t - 1
		separator = target.Keys[middleIdx]
		sibling.Keys = append([]uint32(nil), target.Keys[middleIdx+1:]...)
		sibling.Data = append([]Value(nil), target.Data[t:]...)
		target.Keys = target.Keys[:middleIdx]
		target.Data = target.Data[:t]

		for _, v := range sibling.Data {
			if v.Kind() == KindPointer {
				reparent(cache, v.Pointer(), sibling.ID)
			}
		}
	}

	sibling.Right = target.Right
	sibling.Left = target.ID
	sibling.Parent = parent.ID
	target.Right = sibling.ID
	target.Parent = parent.ID
	if sibling.Right != EmptyID {
		if rightNode, ok := cache.Get(sibling.Right); ok {
			rightNode.Left = sibling.ID
			cache.Put(rightNode)
		}
	}

	cache.Put(target)
	cache.Put(sibling)

	if isNewRoot {
		parent.Keys = []uint32{separator}
		parent.Data = []Value{NewPointer(target.ID), NewPointer(sibling.ID)}
		cache.Put(parent)
		cache.SetRoot(parent.ID)
		return parent.ID, nil
	}

	idx := insertionIndex(cache.Comparator(), parent, separator)
	parent.InsertSeparator(idx, separator, sibling.ID)
	cache.Put(parent)

	if !parent.Overflows(params) {
		return cache.Root(), nil
	}
	return splitUp(cache, parent)
}

func reparent(cache NodeCache, child, newParent NodeID) {
	if n, ok := cache.Get(child); ok {
		n.Parent = newParent
		cache.Put(n)
	}
}
