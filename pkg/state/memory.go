package state

import (
	"context"
	"sync"
)

type memoryStore struct {
	sync.RWMutex

	data map[string][]byte
}

func NewMemory() Store {
	return &memoryStore{
		data: make(map[string][]byte),
	}
}

func (s *memoryStore) Load(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.RLock()
	defer s.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), data...), nil
}

func (s *memoryStore) Save(_ context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	s.data[key] = append([]byte(nil), data...)

	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	delete(s.data, key)

	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
