package quota

import (
	"context"
	"sync"
)

// MockStore is a mock implementation of Store for testing.
type MockStore struct {
	mu sync.Mutex

	// Record is returned by Fetch; nil models a missing record.
	Record *Record

	// FetchErr and SaveErr, when set, are returned by the respective
	// operations.
	FetchErr error
	SaveErr  error

	// Captured calls for assertions.
	Fetches int
	Saves   []Record
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Fetch implements Store.
func (m *MockStore) Fetch(ctx context.Context, userID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Record == nil {
		return nil, nil
	}
	clone := *m.Record
	return &clone, nil
}

// Save implements Store.
func (m *MockStore) Save(ctx context.Context, userID string, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves = append(m.Saves, *rec)
	m.Record = rec
	return nil
}

// Close implements Store.
func (m *MockStore) Close() error {
	return nil
}

// SavedValues returns the persisted remaining-seconds values in order.
func (m *MockStore) SavedValues() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]int, len(m.Saves))
	for i, rec := range m.Saves {
		values[i] = rec.RemainingSeconds
	}
	return values
}

var _ Store = (*MockStore)(nil)
