// Package txlog implements the persisted record formats and the
// flush/reload cycle that copy a tree's dirty nodes into a
// store.Store and reconstruct a tree's node cache from one on open.
// Grounded on protocol/protocol.go's SerializePacket/DeserializeResponse
// bytes.Buffer+binary.Write/Read framing, re-keyed to the little-endian
// fixed-width node/transaction layout named in SPEC_FULL.md §6.
package txlog

import (
	"fmt"

	"github.com/rickcollette/bptreedb/bptree"
	"github.com/rickcollette/bptreedb/store"
)

// WriteNode appends one node record and returns its offset:
// id, is_leaf, parent, left, right, keys_count, data_count,
// keys[...], data[...], crc32. Data entries are written as their raw
// uint32 (a leaf payload or a child NodeID — both fit in uint32).
func WriteNode(s store.Store, n *bptree.Node) (uint64, error) {
	payload := encodeNode(n)
	offset, err := s.WriteBytes(payload)
	if err != nil {
		return 0, bptree.WrapIO(err, "txlog: write node %s", n.ID)
	}
	if _, err := s.WriteU32(store.CRC32(payload)); err != nil {
		return 0, bptree.WrapIO(err, "txlog: write node %s checksum", n.ID)
	}
	return offset, nil
}

func encodeNode(n *bptree.Node) []byte {
	buf := make([]byte, 0, 28+8*(len(n.Keys)+len(n.Data)))
	buf = appendU32(buf, uint32(n.ID))
	if n.IsLeaf {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU32(buf, uint32(n.Parent))
	buf = appendU32(buf, uint32(n.Left))
	buf = appendU32(buf, uint32(n.Right))
	buf = appendU32(buf, uint32(len(n.Keys)))
	buf = appendU32(buf, uint32(len(n.Data)))
	for _, k := range n.Keys {
		buf = appendU32(buf, k)
	}
	for _, v := range n.Data {
		buf = appendU32(buf, encodeValue(v))
	}
	return buf
}

// encodeValue packs a Value's payload/pointer into one uint32. The
// tag itself is not persisted since a node's IsLeaf flag already
// determines, per slot, whether Data holds payloads or pointers; an
// Empty slot never reaches the wire (nodes are compacted to
// data_count before writing, per SPEC_FULL.md §6).
func encodeValue(v bptree.Value) uint32 {
	switch v.Kind() {
	case bptree.KindValue:
		return v.Payload()
	case bptree.KindPointer:
		return uint32(v.Pointer())
	default:
		panic("txlog: cannot persist an empty Value slot")
	}
}

// ReadNode reads back a node record at offset, verifying its trailing
// checksum. It reads the is_leaf byte at offset+4 itself and uses it
// to reinterpret the raw uint32 data slots (payload vs. pointer).
func ReadNode(s store.Store, offset uint64) (*bptree.Node, error) {
	id, err := s.ReadU32(offset)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node id")
	}
	leafByte, err := s.ReadU8(offset + 4)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node is_leaf")
	}
	parent, err := s.ReadU32(offset + 5)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node parent")
	}
	left, err := s.ReadU32(offset + 9)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node left")
	}
	right, err := s.ReadU32(offset + 13)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node right")
	}
	keysCount, err := s.ReadU32(offset + 17)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node keys_count")
	}
	dataCount, err := s.ReadU32(offset + 21)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node data_count")
	}

	recordLen := 25 + 4*int(keysCount) + 4*int(dataCount)
	raw, err := s.ReadBytes(offset, uint32(recordLen))
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node body")
	}
	wantCRC, err := s.ReadU32(offset + uint64(recordLen))
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read node checksum")
	}
	if !store.VerifyCRC32(raw, wantCRC) {
		return nil, bptree.WrapIO(&store.ErrChecksum{What: fmt.Sprintf("node at offset %d", offset)}, "txlog: node checksum mismatch")
	}

	n := &bptree.Node{
		ID:     bptree.NodeID(id),
		IsLeaf: leafByte != 0,
		Parent: bptree.NodeID(parent),
		Left:   bptree.NodeID(left),
		Right:  bptree.NodeID(right),
	}
	pos := offset + 25
	n.Keys = make([]uint32, keysCount)
	for i := range n.Keys {
		k, err := s.ReadU32(pos)
		if err != nil {
			return nil, bptree.WrapIO(err, "txlog: read node key %d", i)
		}
		n.Keys[i] = k
		pos += 4
	}
	n.Data = make([]bptree.Value, dataCount)
	for i := range n.Data {
		raw, err := s.ReadU32(pos)
		if err != nil {
			return nil, bptree.WrapIO(err, "txlog: read node data %d", i)
		}
		if n.IsLeaf {
			n.Data[i] = bptree.NewValue(raw)
		} else {
			n.Data[i] = bptree.NewPointer(bptree.NodeID(raw))
		}
		pos += 4
	}
	return n, nil
}

// Transaction names the offsets of every node a tree flushed together.
type Transaction struct {
	TreeID      uint32
	NodeOffsets []uint64
}

// WriteTransaction appends MAGIC_TRANSACTION, tree_id, node_count,
// offsets[...], crc32 and returns its own offset.
func WriteTransaction(s store.Store, tx Transaction) (uint64, error) {
	buf := appendU32(nil, store.MagicTransaction)
	buf = appendU32(buf, tx.TreeID)
	buf = appendU32(buf, uint32(len(tx.NodeOffsets)))
	for _, off := range tx.NodeOffsets {
		buf = appendU64(buf, off)
	}
	offset, err := s.WriteBytes(buf)
	if err != nil {
		return 0, bptree.WrapIO(err, "txlog: write transaction for tree %d", tx.TreeID)
	}
	if _, err := s.WriteU32(store.CRC32(buf)); err != nil {
		return 0, bptree.WrapIO(err, "txlog: write transaction checksum")
	}
	return offset, nil
}

// ReadTransaction reads back a transaction record at offset.
func ReadTransaction(s store.Store, offset uint64) (Transaction, error) {
	magic, err := s.ReadU32(offset)
	if err != nil {
		return Transaction{}, bptree.WrapIO(err, "txlog: read transaction magic")
	}
	if magic != store.MagicTransaction {
		return Transaction{}, bptree.WrapIO(nil, "txlog: bad transaction magic at %d", offset)
	}
	treeID, err := s.ReadU32(offset + 4)
	if err != nil {
		return Transaction{}, bptree.WrapIO(err, "txlog: read transaction tree_id")
	}
	count, err := s.ReadU32(offset + 8)
	if err != nil {
		return Transaction{}, bptree.WrapIO(err, "txlog: read transaction node_count")
	}
	recordLen := 12 + 8*int(count)
	raw, err := s.ReadBytes(offset, uint32(recordLen))
	if err != nil {
		return Transaction{}, bptree.WrapIO(err, "txlog: read transaction body")
	}
	wantCRC, err := s.ReadU32(offset + uint64(recordLen))
	if err != nil {
		return Transaction{}, bptree.WrapIO(err, "txlog: read transaction checksum")
	}
	if !store.VerifyCRC32(raw, wantCRC) {
		return Transaction{}, bptree.WrapIO(&store.ErrChecksum{What: fmt.Sprintf("transaction at offset %d", offset)}, "txlog: transaction checksum mismatch")
	}

	tx := Transaction{TreeID: treeID, NodeOffsets: make([]uint64, count)}
	pos := offset + 12
	for i := range tx.NodeOffsets {
		off, err := s.ReadU64(pos)
		if err != nil {
			return Transaction{}, bptree.WrapIO(err, "txlog: read transaction node offset %d", i)
		}
		tx.NodeOffsets[i] = off
		pos += 8
	}
	return tx, nil
}

// WriteTransactionList appends MAGIC_TRANSACTION_LIST, tree_count,
// transaction_offsets[...] and returns its own offset. Unlike node and
// transaction records the list itself carries no trailing checksum:
// the header that points at it is authenticated instead (§4.6), and
// the list is only ever read by following that trusted pointer.
func WriteTransactionList(s store.Store, txOffsets []uint64) (uint64, error) {
	buf := appendU32(nil, store.MagicTransactionList)
	buf = appendU32(buf, uint32(len(txOffsets)))
	for _, off := range txOffsets {
		buf = appendU64(buf, off)
	}
	offset, err := s.WriteBytes(buf)
	if err != nil {
		return 0, bptree.WrapIO(err, "txlog: write transaction list")
	}
	return offset, nil
}

// ReadTransactionList reads back the list of transaction offsets at offset.
func ReadTransactionList(s store.Store, offset uint64) ([]uint64, error) {
	magic, err := s.ReadU32(offset)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read transaction list magic")
	}
	if magic != store.MagicTransactionList {
		return nil, bptree.WrapIO(nil, "txlog: bad transaction list magic at %d", offset)
	}
	count, err := s.ReadU32(offset + 4)
	if err != nil {
		return nil, bptree.WrapIO(err, "txlog: read transaction list count")
	}
	offsets := make([]uint64, count)
	pos := offset + 8
	for i := range offsets {
		off, err := s.ReadU64(pos)
		if err != nil {
			return nil, bptree.WrapIO(err, "txlog: read transaction list entry %d", i)
		}
		offsets[i] = off
		pos += 8
	}
	return offsets, nil
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
