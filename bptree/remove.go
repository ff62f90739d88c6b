package bptree

// Remove implements spec §4.4 remove(key): erases key from its leaf
// and rebalances ancestors that fall below their minimum occupancy.
// Grounded on rm/mod.rs's erase_key plus the take_from/move_to family,
// simplified to sibling borrow/merge within the same parent only (a
// neighbour under a different parent is never borrowed from or merged
// into) rather than the original's cross-parent rollup machinery.
func Remove(cache NodeCache, root NodeID, key uint32) (NodeID, error) {
	if root == EmptyID {
		return root, errNotFound("remove: empty tree")
	}
	leaf, err := Scan(cache, root, key)
	if err != nil {
		return root, err
	}
	cmp := cache.Comparator()
	idx, ok := leafIndexOf(cmp, leaf, key)
	if !ok {
		return cache.Root(), errNotFound("remove: key %d not found", key)
	}

	firstKey := leaf.Keys[0]
	leaf.removeKeyAt(idx)
	leaf.removeDataAt(idx)
	cache.Put(leaf)

	if leaf.KeysCount() > 0 && firstKey != leaf.FirstKey() {
		propagateMinKey(cache, leaf)
	}

	params := cache.Params()
	isRoot := leaf.Parent == EmptyID
	if leaf.DataCount() >= params.MinSize(isRoot, true) || isRoot {
		return cache.Root(), nil
	}
	return rebalance(cache, leaf)
}

// rebalance restores minimum occupancy for target, which has just
// fallen below its minimum, by borrowing from a same-parent sibling or
// merging with one. A parent that itself falls below minimum after a
// merge is rebalanced recursively.
func rebalance(cache NodeCache, target *Node) (NodeID, error) {
	params := cache.Params()
	t := params.T

	if target.Parent == EmptyID {
		// Root underflow: collapse to its only child if it has exactly
		// one, mirroring rebalancing.rs's root-collapse branch.
		if !target.IsLeaf && target.DataCount() == 1 {
			onlyChild := target.Data[0].Pointer()
			child, ok := cache.Get(onlyChild)
			if !ok {
				return cache.Root(), errNotFound("rebalance: root child %s not found", onlyChild)
			}
			child.Parent = EmptyID
			cache.Put(child)
			cache.Erase(target.ID)
			cache.SetRoot(child.ID)
			return child.ID, nil
		}
		return cache.Root(), nil
	}

	parent, ok := cache.Get(target.Parent)
	if !ok {
		return cache.Root(), errNotFound("rebalance: parent %s not found", target.Parent)
	}

	var left, right *Node
	if target.Left != EmptyID {
		if n, ok := cache.Get(target.Left); ok && n.Parent == target.Parent {
			left = n
		}
	}
	if target.Right != EmptyID {
		if n, ok := cache.Get(target.Right); ok && n.Parent == target.Parent {
			right = n
		}
	}

	if left != nil && left.DataCount() > params.MinSize(false, target.IsLeaf) {
		borrowFromLeft(cache, target, left, parent)
		cache.Put(target)
		cache.Put(left)
		cache.Put(parent)
		return cache.Root(), nil
	}
	if right != nil && right.DataCount() > params.MinSize(false, target.IsLeaf) {
		borrowFromRight(cache, target, right, parent)
		cache.Put(target)
		cache.Put(right)
		cache.Put(parent)
		return cache.Root(), nil
	}

	if left != nil {
		separator := parent.Keys[parent.IndexOfChild(target.ID)-1]
		mergeInto(left, target, separator)
		relinkAfterMerge(cache, left, target)
		parent.EraseLink(target.ID)
		cache.Put(left)
		cache.Put(parent)
		cache.Erase(target.ID)
		return afterMerge(cache, parent, t)
	}
	if right != nil {
		separator := parent.Keys[parent.IndexOfChild(right.ID)-1]
		mergeInto(target, right, separator)
		relinkAfterMerge(cache, target, right)
		parent.EraseLink(right.ID)
		cache.Put(target)
		cache.Put(parent)
		cache.Erase(right.ID)
		return afterMerge(cache, parent, t)
	}

	// No same-parent sibling to borrow from or merge with (an only
	// child). Tolerate the underflow; the node stays below minimum
	// until a future insert or a merge triggered from its sibling side.
	return cache.Root(), nil
}

func afterMerge(cache NodeCache, parent *Node, t int) (NodeID, error) {
	isRoot := parent.Parent == EmptyID
	if parent.DataCount() < cache.Params().MinSize(isRoot, false) || (isRoot && parent.DataCount() == 1) {
		return rebalance(cache, parent)
	}
	return cache.Root(), nil
}

// borrowFromLeft moves left's last entry to the front of target,
// updating the separator parent holds between them. For an internal
// target, invariant I3 (a separator equals the minimum key of the
// subtree to its right) pins both the new parent separator (left's old
// last key, now the minimum of the moved child) and target's new first
// key (the old parent separator, now the minimum of target's old first
// child). Grounded on take_from.rs's take_from_low.
func borrowFromLeft(cache NodeCache, target, left, parent *Node) {
	if target.IsLeaf {
		key := left.Keys[len(left.Keys)-1]
		val := left.Data[len(left.Data)-1]
		left.removeKeyAt(len(left.Keys) - 1)
		left.removeDataAt(len(left.Data) - 1)
		target.InsertData(0, key, val)
		parent.UpdateKey(target.ID, key)
		return
	}
	pIdx := parent.IndexOfChild(target.ID)
	oldSeparator := parent.Keys[pIdx-1]
	newSeparator := left.Keys[len(left.Keys)-1]
	movedChild := left.Data[len(left.Data)-1]
	left.removeKeyAt(len(left.Keys) - 1)
	left.removeDataAt(len(left.Data) - 1)
	target.Keys = append([]uint32{oldSeparator}, target.Keys...)
	target.Data = append([]Value{movedChild}, target.Data...)
	reparent(cache, movedChild.Pointer(), target.ID)
	parent.Keys[pIdx-1] = newSeparator
}

// borrowFromRight is the mirror of borrowFromLeft, taking right's
// first entry onto target's end. Grounded on take_from.rs's
// take_from_high.
func borrowFromRight(cache NodeCache, target, right, parent *Node) {
	if target.IsLeaf {
		key := right.Keys[0]
		val := right.Data[0]
		right.removeKeyAt(0)
		right.removeDataAt(0)
		target.InsertData(target.KeysCount(), key, val)
		parent.UpdateKey(right.ID, right.FirstKey())
		return
	}
	pIdx := parent.IndexOfChild(right.ID)
	oldSeparator := parent.Keys[pIdx-1]
	newSeparator := right.Keys[0]
	movedChild := right.Data[0]
	right.removeKeyAt(0)
	right.removeDataAt(0)
	target.Keys = append(target.Keys, oldSeparator)
	target.Data = append(target.Data, movedChild)
	reparent(cache, movedChild.Pointer(), target.ID)
	parent.Keys[pIdx-1] = newSeparator
}

// mergeInto appends high's entries onto low. For an internal merge,
// the separator previously held by the parent between low and high's
// subtrees becomes the new key joining their key arrays — the same
// promotion split.rs's middle key performs in reverse. Grounded on
// move_to.rs's move_to_lower.
func mergeInto(low, high *Node, parentSeparator uint32) {
	if !low.IsLeaf {
		low.Keys = append(low.Keys, parentSeparator)
	}
	low.Keys = append(low.Keys, high.Keys...)
	low.Data = append(low.Data, high.Data...)
}

// relinkAfterMerge threads low directly to high's former right
// neighbor, and reparents high's children onto low if low is internal.
func relinkAfterMerge(cache NodeCache, low, high *Node) {
	low.Right = high.Right
	if high.Right != EmptyID {
		if n, ok := cache.Get(high.Right); ok {
			n.Left = low.ID
			cache.Put(n)
		}
	}
	if !low.IsLeaf {
		for _, v := range high.Data {
			if v.Kind() == KindPointer {
				reparent(cache, v.Pointer(), low.ID)
			}
		}
	}
}
