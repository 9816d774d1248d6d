package permission

import (
	"context"
	"sync"
)

// MockPlatform is a scriptable Platform for testing.
type MockPlatform struct {
	mu sync.Mutex

	// Statuses returned by Check, keyed by permission kind.
	// Missing entries default to StatusDenied.
	CheckStatus map[Kind]Status

	// Statuses returned by Request, keyed by permission kind.
	RequestStatus map[Kind]Status

	// Configurable behavior
	CheckFunc   func(ctx context.Context, kind Kind) (Status, error)
	RequestFunc func(ctx context.Context, kind Kind) (Status, error)

	// Captured calls for assertions
	Checks   []Kind
	Requests []Kind
}

// NewMockPlatform creates a mock platform that denies everything until
// scripted otherwise.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		CheckStatus:   make(map[Kind]Status),
		RequestStatus: make(map[Kind]Status),
	}
}

// Check implements Platform.
func (m *MockPlatform) Check(ctx context.Context, kind Kind) (Status, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Checks = append(m.Checks, kind)
	if s, ok := m.CheckStatus[kind]; ok {
		return s, nil
	}
	return StatusDenied, nil
}

// Request implements Platform.
func (m *MockPlatform) Request(ctx context.Context, kind Kind) (Status, error) {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, kind)
	if s, ok := m.RequestStatus[kind]; ok {
		return s, nil
	}
	return StatusDenied, nil
}

// Grant scripts both Check and Request to grant the given kind.
func (m *MockPlatform) Grant(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckStatus[kind] = StatusGranted
	m.RequestStatus[kind] = StatusGranted
}

// DenyForever scripts a hard denial for the given kind.
func (m *MockPlatform) DenyForever(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckStatus[kind] = StatusDenied
	m.RequestStatus[kind] = StatusDeniedForever
}

// Ensure MockPlatform implements Platform.
var _ Platform = (*MockPlatform)(nil)
