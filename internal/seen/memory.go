package seen

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for single-node deployments and tests.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) MarkSeen(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + "\x00" + key
	if _, ok := s.seen[k]; ok {
		return false, nil
	}
	s.seen[k] = struct{}{}
	return true, nil
}
