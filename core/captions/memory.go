package captions

import (
	"context"
	"sync"
)

// MemoryCache keeps captions for the lifetime of the process.
type MemoryCache struct {
	getOrComputer
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{}
	c.getOrComputer.store = &memoryStore{captions: map[int64]string{}}
	return c
}

type memoryStore struct {
	mu       sync.RWMutex
	captions map[int64]string
}

func (s *memoryStore) load(_ context.Context, id int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	caption, ok := s.captions[id]
	return caption, ok, nil
}

func (s *memoryStore) save(_ context.Context, id int64, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captions[id] = caption
	return nil
}
