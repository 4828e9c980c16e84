package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogogo1024/filegate/protocol"
)

// MemStore keeps files in memory. It is safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ FileStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

// Put stores a copy of data under name.
func (s *MemStore) Put(name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.files[name] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Delete(name string) {
	s.mu.Lock()
	delete(s.files, name)
	s.mu.Unlock()
}

func (s *MemStore) Stat(_ context.Context, name string) (int64, error) {
	data, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (s *MemStore) Open(_ context.Context, name string) (File, error) {
	data, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return newBytesFile(data), nil
}

func (s *MemStore) get(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrFileNotFound, name)
	}
	return data, nil
}
