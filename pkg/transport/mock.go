package transport

import (
	"context"
	"sync"
)

// StartCall records one StartSession invocation on the mock driver.
type StartCall struct {
	AgentID string
	UserID  string
}

// MockDriver is a mock implementation of Driver for testing.
type MockDriver struct {
	mu sync.RWMutex

	// Callbacks
	onStatus     func(Status)
	onAudioFrame func(string)
	onMode       func(bool)
	onError      func(string)
	onDisconnect func(string)

	// Configurable behavior
	StartFunc func(ctx context.Context, agentID, userID string) error
	EndFunc   func(reason string) error

	// Captured calls for assertions
	Started  []StartCall
	Ended    []string
	Muted    []bool
	Messages []string
}

// NewMockDriver creates a new mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// StartSession implements Driver.
func (m *MockDriver) StartSession(ctx context.Context, agentID, userID string) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, agentID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, StartCall{AgentID: agentID, UserID: userID})
	return nil
}

// EndSession implements Driver.
func (m *MockDriver) EndSession(reason string) error {
	if m.EndFunc != nil {
		return m.EndFunc(reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ended = append(m.Ended, reason)
	return nil
}

// SetMicMuted implements Driver.
func (m *MockDriver) SetMicMuted(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Muted = append(m.Muted, muted)
	return nil
}

// SendUserMessage implements Driver.
func (m *MockDriver) SendUserMessage(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
	return nil
}

// OnStatus implements Driver.
func (m *MockDriver) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// OnAudioFrame implements Driver.
func (m *MockDriver) OnAudioFrame(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudioFrame = fn
}

// OnMode implements Driver.
func (m *MockDriver) OnMode(fn func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMode = fn
}

// OnError implements Driver.
func (m *MockDriver) OnError(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnDisconnect implements Driver.
func (m *MockDriver) OnDisconnect(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// Test helpers

// SimulateStatus triggers the status callback.
func (m *MockDriver) SimulateStatus(status Status) {
	m.mu.RLock()
	fn := m.onStatus
	m.mu.RUnlock()
	if fn != nil {
		fn(status)
	}
}

// SimulateAudioFrame triggers the audio frame callback.
func (m *MockDriver) SimulateAudioFrame(frameBase64 string) {
	m.mu.RLock()
	fn := m.onAudioFrame
	m.mu.RUnlock()
	if fn != nil {
		fn(frameBase64)
	}
}

// SimulateMode triggers the speaking/listening callback.
func (m *MockDriver) SimulateMode(speaking bool) {
	m.mu.RLock()
	fn := m.onMode
	m.mu.RUnlock()
	if fn != nil {
		fn(speaking)
	}
}

// SimulateError triggers the error callback.
func (m *MockDriver) SimulateError(message string) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(message)
	}
}

// SimulateDisconnect triggers the disconnect callback.
func (m *MockDriver) SimulateDisconnect(reason string) {
	m.mu.RLock()
	fn := m.onDisconnect
	m.mu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

// Reset clears all captured data.
func (m *MockDriver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = nil
	m.Ended = nil
	m.Muted = nil
	m.Messages = nil
}

// Ensure MockDriver implements Driver.
var _ Driver = (*MockDriver)(nil)
