package quota

import (
	"context"
	"sync"
)

// memoryStore implements Store with an in-process map. Useful for tests
// and single-process deployments.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// Fetch implements Store.
func (s *memoryStore) Fetch(ctx context.Context, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

// Save implements Store.
func (s *memoryStore) Save(ctx context.Context, userID string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *rec
	s.records[userID] = &clone
	return nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return nil
}
