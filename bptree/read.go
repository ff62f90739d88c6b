package bptree

// Scan implements spec §4.2 scan(key): descends from root to the leaf
// that would hold key, following Find at each internal node.
func Scan(cache NodeCache, root NodeID, key uint32) (*Node, error) {
	if root == EmptyID {
		return nil, errNotFound("scan: empty tree")
	}
	target, ok := cache.Get(root)
	if !ok {
		return nil, errNotFound("scan: node %s not found", root)
	}
	cmp := cache.Comparator()
	for !target.IsLeaf {
		v, ok := target.Find(cmp, key)
		if !ok {
			return nil, errNotFound("scan: key %d has no route from node %s", key, target.ID)
		}
		next, ok := cache.Get(v.Pointer())
		if !ok {
			return nil, errNotFound("scan: child %s not found", v.Pointer())
		}
		target = next
	}
	return target, nil
}

// Find implements spec §4.2 find(key): the value stored under key, or
// false if no such key exists in the tree.
func Find(cache NodeCache, root NodeID, key uint32) (Value, bool, error) {
	leaf, err := Scan(cache, root, key)
	if err != nil {
		return Value{}, false, err
	}
	v, ok := leaf.Find(cache.Comparator(), key)
	return v, ok, nil
}

// Separator implements spec §4.1 find_separator(key): the separator
// key that routes key's descent into its target leaf, read from the
// leaf's parent. Returns false for a one-leaf tree, which has no
// internal node to hold a separator.
func Separator(cache NodeCache, root NodeID, key uint32) (uint32, bool, error) {
	if root == EmptyID {
		return 0, false, errNotFound("separator: empty tree")
	}
	node, ok := cache.Get(root)
	if !ok {
		return 0, false, errNotFound("separator: node %s not found", root)
	}
	if node.IsLeaf {
		return 0, false, nil
	}
	cmp := cache.Comparator()
	for {
		v, ok := node.Find(cmp, key)
		if !ok {
			return 0, false, errNotFound("separator: key %d has no route from node %s", key, node.ID)
		}
		child, ok := cache.Get(v.Pointer())
		if !ok {
			return 0, false, errNotFound("separator: child %s not found", v.Pointer())
		}
		if child.IsLeaf {
			sep, ok := node.FindSeparator(cmp, key)
			return sep, ok, nil
		}
		node = child
	}
}
