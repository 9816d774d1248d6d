package agent

import (
	"context"
	"sync"
)

// MockCatalog is a mock implementation of Catalog for testing.
type MockCatalog struct {
	mu sync.Mutex

	// Characters maps character IDs to catalog entries.
	Characters map[string]*Character

	// Err, when set, is returned by every lookup.
	Err error

	// Lookups counts Character calls.
	Lookups int
}

// NewMockCatalog creates an empty mock catalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{Characters: make(map[string]*Character)}
}

// Add registers a character.
func (m *MockCatalog) Add(c *Character) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Characters[c.ID] = c
}

// Character implements Catalog.
func (m *MockCatalog) Character(ctx context.Context, id string) (*Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.Characters[id]
	if !ok {
		return nil, ErrCharacterNotFound
	}
	return c, nil
}

// LookupCount returns the number of catalog lookups performed.
func (m *MockCatalog) LookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Lookups
}

var _ Catalog = (*MockCatalog)(nil)
