package bptree

// MapRange implements spec §4.2 map(from, to): visits every (key,
// value) pair with from <= key <= to, ascending, by scanning to the
// leaf holding from and then walking the sibling chain via Right.
func MapRange(cache NodeCache, root NodeID, from, to uint32, f func(key uint32, val Value)) error {
	cmp := cache.Comparator()
	if cmp.Compare(from, to) > 0 {
		return errFail("MapRange: from > to")
	}
	node, err := Scan(cache, root, from)
	if err != nil {
		return err
	}
	for {
		node.Map(cmp, from, to, f)
		if node.Right == EmptyID {
			return nil
		}
		next, ok := cache.Get(node.Right)
		if !ok {
			return errNotFound("MapRange: sibling %s not found", node.Right)
		}
		if next.IsEmpty() || cmp.Compare(next.FirstKey(), to) > 0 {
			return nil
		}
		node = next
	}
}

// MapRangeRev implements spec §4.2 map_rev(from, to): the same range,
// descending, walking the sibling chain via Left from the leaf holding to.
func MapRangeRev(cache NodeCache, root NodeID, from, to uint32, f func(key uint32, val Value)) error {
	cmp := cache.Comparator()
	if cmp.Compare(from, to) > 0 {
		return errFail("MapRangeRev: from > to")
	}
	node, err := Scan(cache, root, to)
	if err != nil {
		return err
	}
	for {
		node.MapRev(cmp, from, to, f)
		if !node.IsEmpty() && cmp.Compare(node.FirstKey(), from) <= 0 {
			return nil
		}
		if node.Left == EmptyID {
			return nil
		}
		next, ok := cache.Get(node.Left)
		if !ok {
			return errNotFound("MapRangeRev: sibling %s not found", node.Left)
		}
		node = next
	}
}

// Cursor is a resumable forward iterator over a key range, used by
// package kv to expose range scans one entry at a time instead of via
// a callback, since the façade hands results back one CursorNext call
// at a time rather than inline.
type Cursor struct {
	cache    NodeCache
	node     *Node
	idx      int
	from, to uint32
	done     bool
}

// NewCursor positions a Cursor at the first entry with key >= from in
// the tree rooted at root.
func NewCursor(cache NodeCache, root NodeID, from, to uint32) (*Cursor, error) {
	cmp := cache.Comparator()
	if cmp.Compare(from, to) > 0 {
		return nil, errFail("NewCursor: from > to")
	}
	node, err := Scan(cache, root, from)
	if err != nil {
		return nil, err
	}
	c := &Cursor{cache: cache, node: node, from: from, to: to}
	c.seek()
	return c, nil
}

func (c *Cursor) seek() {
	cmp := c.cache.Comparator()
	for {
		idx := 0
		for idx < len(c.node.Keys) && cmp.Compare(c.node.Keys[idx], c.from) < 0 {
			idx++
		}
		if idx < len(c.node.Keys) {
			c.idx = idx
			return
		}
		if c.node.Right == EmptyID {
			c.done = true
			return
		}
		next, ok := c.cache.Get(c.node.Right)
		if !ok {
			c.done = true
			return
		}
		c.node = next
	}
}

// Next reports the current (key, value) pair and advances, or reports
// done == true once the range is exhausted.
func (c *Cursor) Next() (key uint32, val Value, done bool) {
	if c.done {
		return 0, Value{}, true
	}
	cmp := c.cache.Comparator()
	key = c.node.Keys[c.idx]
	if cmp.Compare(key, c.to) > 0 {
		c.done = true
		return 0, Value{}, true
	}
	val = c.node.Data[c.idx]
	c.idx++
	if c.idx >= len(c.node.Keys) {
		if c.node.Right == EmptyID {
			c.done = true
		} else {
			next, ok := c.cache.Get(c.node.Right)
			if !ok {
				c.done = true
			} else {
				c.node = next
				c.idx = 0
			}
		}
	}
	return key, val, false
}
