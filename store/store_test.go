package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	// ParamsWrite reserves the fixed-size trailer at offset 0, so it
	// must happen before any other write claims that region.
	params := StorageParams{Offset: 42, IsClosed: true, TreeParams: TreeParams{T: 100, MinSizeRoot: 2, MinSizeLeaf: 100, MinSizeNode: 100}}
	if err := s.ParamsWrite(params); err != nil {
		t.Fatalf("ParamsWrite: %v", err)
	}

	offU8, err := s.WriteU8(0xAB)
	if err != nil {
		t.Fatalf("WriteU8: %v", err)
	}
	offU16, err := s.WriteU16(0x1234)
	if err != nil {
		t.Fatalf("WriteU16: %v", err)
	}
	offU32, err := s.WriteU32(0xCAFEBABE)
	if err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	offU64, err := s.WriteU64(0x0102030405060708)
	if err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	offBool, err := s.WriteBool(true)
	if err != nil {
		t.Fatalf("WriteBool: %v", err)
	}
	payload := []byte("the quick brown fox")
	offBytes, err := s.WriteBytes(payload)
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	if v, err := s.ReadU8(offU8); err != nil || v != 0xAB {
		t.Fatalf("ReadU8 = %v, %v; want 0xAB", v, err)
	}
	if v, err := s.ReadU16(offU16); err != nil || v != 0x1234 {
		t.Fatalf("ReadU16 = %v, %v; want 0x1234", v, err)
	}
	if v, err := s.ReadU32(offU32); err != nil || v != 0xCAFEBABE {
		t.Fatalf("ReadU32 = %v, %v; want 0xCAFEBABE", v, err)
	}
	if v, err := s.ReadU64(offU64); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %v, %v; want 0x0102030405060708", v, err)
	}
	if v, err := s.ReadBool(offBool); err != nil || !v {
		t.Fatalf("ReadBool = %v, %v; want true", v, err)
	}
	got, err := s.ReadBytes(offBytes, uint32(len(payload)))
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("ReadBytes = %q, %v; want %q", got, err, payload)
	}

	gotParams, err := s.ParamsRead()
	if err != nil || gotParams != params {
		t.Fatalf("ParamsRead = %+v, %v; want %+v", gotParams, err, params)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := OpenFileStore(filepath.Join(dir, "tree.db"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer fs.Close()
	exerciseStore(t, fs)
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	es, err := NewEncryptedStore(NewMemoryStore(), key)
	if err != nil {
		t.Fatalf("NewEncryptedStore: %v", err)
	}
	exerciseStore(t, es)
}

func TestEncryptedStoreOpaqueOnDisk(t *testing.T) {
	key := bytes.Repeat([]byte{0x7, 0x9}, 16)
	inner := NewMemoryStore()
	es, err := NewEncryptedStore(inner, key)
	if err != nil {
		t.Fatalf("NewEncryptedStore: %v", err)
	}
	secret := []byte("super secret payload, do not leak")
	if _, err := es.WriteBytes(secret); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	raw, err := inner.ReadBytes(0, uint32(inner.mustSize(t)))
	if err != nil {
		t.Fatalf("reading inner bytes: %v", err)
	}
	if bytes.Contains(raw, secret) {
		t.Fatalf("plaintext payload found in underlying store's bytes")
	}
}

func (s *MemoryStore) mustSize(t *testing.T) uint64 {
	t.Helper()
	n, err := s.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	return n
}

func TestCRC32Verifies(t *testing.T) {
	b := []byte("checksum me")
	sum := CRC32(b)
	if !VerifyCRC32(b, sum) {
		t.Fatalf("VerifyCRC32 rejected its own checksum")
	}
	if VerifyCRC32(append(append([]byte(nil), b...), 0), sum) {
		t.Fatalf("VerifyCRC32 accepted a mismatched checksum")
	}
}

func TestHMACTagVerifies(t *testing.T) {
	key := []byte("a storage-wide secret")
	tag := HMACTag(key, true, 12345)
	h := StorageHeader{Magic: MagicHeader, IsClosed: true, TransactionListOffset: 12345, HMACTag: tag}
	if !VerifyHMACTag(key, h) {
		t.Fatalf("VerifyHMACTag rejected its own tag")
	}
	h.TransactionListOffset = 99
	if VerifyHMACTag(key, h) {
		t.Fatalf("VerifyHMACTag accepted a tag for tampered fields")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")

	fs, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	off, err := fs.WriteU32(0xDEADBEEF)
	if err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, err := reopened.ReadU32(off)
	if err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadU32 after reopen = %v, %v; want 0xDEADBEEF", v, err)
	}
}
