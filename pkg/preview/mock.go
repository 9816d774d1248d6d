package preview

import (
	"context"
	"sync"
)

// MockCapture is a scriptable Capture for testing.
type MockCapture struct {
	mu sync.Mutex

	// AcquireFunc overrides the default behavior when set.
	AcquireFunc func(ctx context.Context, c Constraints) (Stream, error)

	// Err is returned from Acquire when set (and AcquireFunc is not).
	Err error

	// Captured calls for assertions
	Acquired []Constraints
	Streams  []*MockStream
}

// Acquire implements Capture.
func (m *MockCapture) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acquired = append(m.Acquired, c)
	if m.Err != nil {
		return nil, m.Err
	}
	s := NewMockStream()
	m.Streams = append(m.Streams, s)
	return s, nil
}

// MockStream is a fake stream whose tracks count their stops.
type MockStream struct {
	VideoTrack *MockTrack
}

// NewMockStream creates a stream with a single video track.
func NewMockStream() *MockStream {
	return &MockStream{VideoTrack: &MockTrack{kind: "video"}}
}

// Tracks implements Stream.
func (s *MockStream) Tracks() []Track {
	return []Track{s.VideoTrack}
}

// MockTrack records how many times it was stopped.
type MockTrack struct {
	mu    sync.Mutex
	kind  string
	stops int
}

func (t *MockTrack) Kind() string { return t.kind }

func (t *MockTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	return nil
}

// Stops returns the number of Stop calls.
func (t *MockTrack) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// Ensure mocks implement their interfaces.
var (
	_ Capture = (*MockCapture)(nil)
	_ Stream  = (*MockStream)(nil)
	_ Track   = (*MockTrack)(nil)
)
