package bptree

// Params carries the tree-shape parameters referenced throughout the
// insert/remove/rebalance logic: t is the minimum branching factor
// (capacity per node is 2t), and the three minima govern when a node
// must be rebalanced after a deletion.
type Params struct {
	T           int // minimum branching factor; node capacity is 2*T
	MinSizeRoot int // minimum data_count tolerated for the root node
	MinSizeLeaf int // minimum data_count tolerated for a non-root leaf
	MinSizeNode int // minimum data_count tolerated for a non-root internal node
}

// DefaultParams mirrors the defaults named in the data model: t=100,
// leaf/node minima equal to t, root minimum of 2.
func DefaultParams() Params {
	return Params{
		T:           100,
		MinSizeRoot: 2,
		MinSizeLeaf: 100,
		MinSizeNode: 100,
	}
}

// Capacity returns 2*T. A node whose data_count reaches it has
// overflowed and is split, so after an operation completes every node
// holds at most Capacity()-1 entries.
func (p Params) Capacity() int { return 2 * p.T }

// MinSize returns the minimum data_count a node of this shape must
// hold outside of a rebalance in progress.
func (p Params) MinSize(isRoot, isLeaf bool) int {
	if isRoot {
		return p.MinSizeRoot
	}
	if isLeaf {
		return p.MinSizeLeaf
	}
	return p.MinSizeNode
}
