package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileStore is an os.File-backed Store. Writes append at end-of-file
// under an in-process lock; reads seek to the requested offset.
// Grounded on lib/kayveedb.go's writeNode/readNode Seek(io.SeekEnd)/
// Seek(io.SeekStart) pattern, generalized from whole-node records to
// arbitrary typed appends.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFileStore opens (creating if absent) the database file at path.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &FileStore{file: f}, nil
}

// ParamsWrite writes p's fixed-size encoding directly at offset 0, the
// reserved trailer position, independent of the file's append tail.
func (s *FileStore) ParamsWrite(p StorageParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteAt(encodeParams(p), 0)
	return err
}

func (s *FileStore) ParamsRead() (StorageParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, paramsSize)
	if _, err := s.file.ReadAt(buf, 0); err != nil {
		return StorageParams{}, err
	}
	return decodeParams(buf), nil
}

// HeaderWrite appends a fresh header record at the current tail; the
// append-only contract means every flush leaves the newest header as
// the last one in the file.
func (s *FileStore) HeaderWrite(h StorageHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.appendLocked(encodeHeader(h))
	return err
}

// HeaderRead reads the last trailer-sized block at end-of-file.
func (s *FileStore) HeaderRead() (StorageHeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := s.file.Stat()
	if err != nil {
		return StorageHeader{}, err
	}
	if info.Size() < int64(headerSize) {
		return StorageHeader{}, fmt.Errorf("store: no header written yet")
	}
	buf, err := s.readAtLocked(uint64(info.Size())-headerSize, headerSize)
	if err != nil {
		return StorageHeader{}, err
	}
	h := decodeHeader(buf)
	if h.Magic != MagicHeader {
		return StorageHeader{}, fmt.Errorf("store: no header written yet")
	}
	return h, nil
}

func (s *FileStore) Size() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

func (s *FileStore) appendLocked(b []byte) (uint64, error) {
	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.file.Write(b); err != nil {
		return 0, err
	}
	return uint64(offset), nil
}

func (s *FileStore) WriteU8(v uint8) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked([]byte{v})
}

func (s *FileStore) WriteU16(v uint16) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return s.appendLocked(b[:])
}

func (s *FileStore) WriteU32(v uint32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.appendLocked(b[:])
}

func (s *FileStore) WriteU64(v uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return s.appendLocked(b[:])
}

func (s *FileStore) WriteBool(v bool) (uint64, error) {
	if v {
		return s.WriteU8(1)
	}
	return s.WriteU8(0)
}

func (s *FileStore) WriteBytes(v []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(v)
}

func (s *FileStore) readAtLocked(offset uint64, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := s.file.ReadAt(b, int64(offset)); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *FileStore) ReadU8(offset uint64) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.readAtLocked(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *FileStore) ReadU16(offset uint64) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.readAtLocked(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (s *FileStore) ReadU32(offset uint64) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.readAtLocked(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (s *FileStore) ReadU64(offset uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.readAtLocked(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (s *FileStore) ReadBool(offset uint64) (bool, error) {
	v, err := s.ReadU8(offset)
	return v != 0, err
}

func (s *FileStore) ReadBytes(offset uint64, n uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAtLocked(offset, int(n))
}

func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
