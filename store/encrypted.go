package store

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedStore wraps another Store and seals every run of bytes
// appended to it with XChaCha20-Poly1305, so the contents of the
// underlying byte arena are opaque without the key. The typed-value
// framing (u8/u16/.../bytes) is unaffected: every Write* call becomes
// one sealed record, and every Read* call opens the record covering
// the requested range. Grounded directly on lib/kayveedb.go's
// encrypt/decrypt (chacha20poly1305.NewX, Seal/Open).
//
// Sealing per primitive write (rather than per flush) trades away
// some space efficiency for a simple 1:1 mapping between plaintext
// offsets and ciphertext records. Write* returns and Read* accepts
// plaintext offsets, while Size() reports the inner store's size,
// which includes each record's nonce and tag.
type EncryptedStore struct {
	inner Store
	key   []byte

	// records maps a plaintext offset (as the wrapped store's
	// callers see it) to where the sealed record begins in the inner
	// store, plus its plaintext length, so ReadU*/ReadBytes can find
	// and open the right record.
	records []sealedRecord
}

type sealedRecord struct {
	plainOffset uint64
	plainLen    uint32
	cipherStart uint64
}

// NewEncryptedStore wraps inner with XChaCha20-Poly1305 sealing keyed
// by key (must be chacha20poly1305.KeySize bytes).
func NewEncryptedStore(inner Store, key []byte) (*EncryptedStore, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("store: encryption key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &EncryptedStore{inner: inner, key: append([]byte(nil), key...)}, nil
}

func (s *EncryptedStore) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plain, nil)
	return append(nonce, sealed...), nil
}

func (s *EncryptedStore) open(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("store: sealed record too short")
	}
	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, body, nil)
}

func (s *EncryptedStore) appendSealed(plain []byte) (uint64, error) {
	sealed, err := s.seal(plain)
	if err != nil {
		return 0, err
	}
	cipherStart, err := s.inner.WriteBytes(sealed)
	if err != nil {
		return 0, err
	}
	plainOffset := uint64(len(s.records))
	if len(s.records) > 0 {
		last := s.records[len(s.records)-1]
		plainOffset = last.plainOffset + uint64(last.plainLen)
	}
	s.records = append(s.records, sealedRecord{
		plainOffset: plainOffset,
		plainLen:    uint32(len(plain)),
		cipherStart: cipherStart,
	})
	return plainOffset, nil
}

func (s *EncryptedStore) readSealed(offset uint64) ([]byte, error) {
	for _, r := range s.records {
		if offset >= r.plainOffset && offset < r.plainOffset+uint64(r.plainLen) {
			sealed, err := s.inner.ReadBytes(r.cipherStart, r.plainLen+uint32(chacha20poly1305.NonceSizeX)+uint32(chacha20poly1305.Overhead))
			if err != nil {
				return nil, err
			}
			plain, err := s.open(sealed)
			if err != nil {
				return nil, err
			}
			return plain[offset-r.plainOffset:], nil
		}
	}
	return nil, fmt.Errorf("store: no sealed record at offset %d", offset)
}

func (s *EncryptedStore) ParamsWrite(p StorageParams) error { return s.inner.ParamsWrite(p) }
func (s *EncryptedStore) ParamsRead() (StorageParams, error) { return s.inner.ParamsRead() }
func (s *EncryptedStore) HeaderWrite(h StorageHeader) error { return s.inner.HeaderWrite(h) }
func (s *EncryptedStore) HeaderRead() (StorageHeader, error) { return s.inner.HeaderRead() }
func (s *EncryptedStore) Size() (uint64, error)              { return s.inner.Size() }

func (s *EncryptedStore) WriteU8(v uint8) (uint64, error)   { return s.appendSealed([]byte{v}) }
func (s *EncryptedStore) WriteU16(v uint16) (uint64, error) { return s.appendSealed(u16bytes(v)) }
func (s *EncryptedStore) WriteU32(v uint32) (uint64, error) { return s.appendSealed(u32bytes(v)) }
func (s *EncryptedStore) WriteU64(v uint64) (uint64, error) { return s.appendSealed(u64bytes(v)) }
func (s *EncryptedStore) WriteBool(v bool) (uint64, error) {
	if v {
		return s.appendSealed([]byte{1})
	}
	return s.appendSealed([]byte{0})
}
func (s *EncryptedStore) WriteBytes(v []byte) (uint64, error) { return s.appendSealed(v) }

func (s *EncryptedStore) ReadU8(offset uint64) (uint8, error) {
	b, err := s.readSealed(offset)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}
func (s *EncryptedStore) ReadU16(offset uint64) (uint16, error) {
	b, err := s.readSealed(offset)
	if err != nil {
		return 0, err
	}
	return leU16(b), nil
}
func (s *EncryptedStore) ReadU32(offset uint64) (uint32, error) {
	b, err := s.readSealed(offset)
	if err != nil {
		return 0, err
	}
	return leU32(b), nil
}
func (s *EncryptedStore) ReadU64(offset uint64) (uint64, error) {
	b, err := s.readSealed(offset)
	if err != nil {
		return 0, err
	}
	return leU64(b), nil
}
func (s *EncryptedStore) ReadBool(offset uint64) (bool, error) {
	v, err := s.ReadU8(offset)
	return v != 0, err
}
func (s *EncryptedStore) ReadBytes(offset uint64, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	b, err := s.readSealed(offset)
	if err != nil {
		return nil, err
	}
	if uint32(len(b)) < n {
		return nil, fmt.Errorf("store: read of %d bytes at offset %d crosses a sealed record boundary", n, offset)
	}
	return b[:n], nil
}

func (s *EncryptedStore) Flush() error { return s.inner.Flush() }
func (s *EncryptedStore) Close() error { return s.inner.Close() }
