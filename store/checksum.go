package store

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"hash/crc32"
)

// CRC32 computes the IEEE CRC-32 of b, the per-record checksum every
// node and transaction record carries per spec §4.6. Grounded on
// _examples/ssargent-freyjadb/pkg/codec/record.go's calculateCRC32.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// VerifyCRC32 reports whether want matches the CRC32 of b.
func VerifyCRC32(b []byte, want uint32) bool {
	return CRC32(b) == want
}

// HMACTag computes the HMAC-SHA256 tag over a StorageHeader's fields
// (everything but the tag itself), keyed by a per-store secret.
// Grounded on lib/kayveedb.go's hashKey (hmac.New(sha256.New, key)).
func HMACTag(key []byte, isClosed bool, transactionListOffset uint64) [32]byte {
	mac := hmac.New(func() hash.Hash { return sha256.New() }, key)
	var closedByte byte
	if isClosed {
		closedByte = 1
	}
	mac.Write([]byte{closedByte})
	var off [8]byte
	binary.LittleEndian.PutUint64(off[:], transactionListOffset)
	mac.Write(off[:])
	var tag [32]byte
	copy(tag[:], mac.Sum(nil))
	return tag
}

// VerifyHMACTag reports whether h's HMACTag matches what key would
// produce for its other fields.
func VerifyHMACTag(key []byte, h StorageHeader) bool {
	want := HMACTag(key, h.IsClosed, h.TransactionListOffset)
	return hmac.Equal(want[:], h.HMACTag[:])
}
