package kv

import "github.com/rickcollette/bptreedb/store"

// writeRecord appends one (key, value) record in the layout named by
// the persisted-layout diagram: key_len u32, key bytes, value_len u32,
// value bytes. Returns the record's offset, which becomes the tree
// key the core algorithms store and order by (via recordComparator).
func writeRecord(s store.Store, key, value []byte) (uint64, error) {
	offset, err := s.WriteU32(uint32(len(key)))
	if err != nil {
		return 0, err
	}
	if _, err := s.WriteBytes(key); err != nil {
		return 0, err
	}
	if _, err := s.WriteU32(uint32(len(value))); err != nil {
		return 0, err
	}
	if _, err := s.WriteBytes(value); err != nil {
		return 0, err
	}
	return offset, nil
}

// readRecordKey reads back just the key bytes of the record at offset,
// the half recordComparator needs to resolve an ordering.
func readRecordKey(s store.Store, offset uint64) ([]byte, error) {
	keyLen, err := s.ReadU32(offset)
	if err != nil {
		return nil, err
	}
	return s.ReadBytes(offset+4, keyLen)
}

// readRecord reads back both the key and value bytes of the record at offset.
func readRecord(s store.Store, offset uint64) (key, value []byte, err error) {
	keyLen, err := s.ReadU32(offset)
	if err != nil {
		return nil, nil, err
	}
	key, err = s.ReadBytes(offset+4, keyLen)
	if err != nil {
		return nil, nil, err
	}
	valueLenOffset := offset + 4 + uint64(keyLen)
	valueLen, err := s.ReadU32(valueLenOffset)
	if err != nil {
		return nil, nil, err
	}
	value, err = s.ReadBytes(valueLenOffset+4, valueLen)
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}
