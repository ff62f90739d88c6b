package store

import "encoding/binary"

func u16bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func leU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func leU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func leU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// paramsSize is the fixed width of the StorageParams trailer written
// at offset 0 on create: Offset(8) + IsClosed(1) + TreeParams(4*4).
const paramsSize = 8 + 1 + 4*4

func encodeParams(p StorageParams) []byte {
	buf := make([]byte, 0, paramsSize)
	buf = append(buf, u64bytes(p.Offset)...)
	buf = append(buf, boolByte(p.IsClosed))
	buf = append(buf, u32bytes(p.TreeParams.T)...)
	buf = append(buf, u32bytes(p.TreeParams.MinSizeRoot)...)
	buf = append(buf, u32bytes(p.TreeParams.MinSizeLeaf)...)
	buf = append(buf, u32bytes(p.TreeParams.MinSizeNode)...)
	return buf
}

func decodeParams(b []byte) StorageParams {
	return StorageParams{
		Offset:   leU64(b[0:8]),
		IsClosed: b[8] != 0,
		TreeParams: TreeParams{
			T:           leU32(b[9:13]),
			MinSizeRoot: leU32(b[13:17]),
			MinSizeLeaf: leU32(b[17:21]),
			MinSizeNode: leU32(b[21:25]),
		},
	}
}

// headerSize is the fixed width of the StorageHeader trailer appended
// at the tail of every flush: Magic(4) + IsClosed(1) +
// TransactionListOffset(8) + HMACTag(32).
const headerSize = 4 + 1 + 8 + 32

func encodeHeader(h StorageHeader) []byte {
	buf := make([]byte, 0, headerSize)
	buf = append(buf, u32bytes(h.Magic)...)
	buf = append(buf, boolByte(h.IsClosed))
	buf = append(buf, u64bytes(h.TransactionListOffset)...)
	buf = append(buf, h.HMACTag[:]...)
	return buf
}

func decodeHeader(b []byte) StorageHeader {
	var h StorageHeader
	h.Magic = leU32(b[0:4])
	h.IsClosed = b[4] != 0
	h.TransactionListOffset = leU64(b[5:13])
	copy(h.HMACTag[:], b[13:45])
	return h
}
