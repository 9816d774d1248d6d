// Package preview manages the local camera self-preview stream shown
// during camera-enabled calls.
//
// The Manager owns at most one capture stream at a time. Stopping is
// idempotent and must be called on every exit path that leaves camera
// mode; a stream that outlives its call keeps the camera LED on and the
// device locked, which is the one failure users always notice.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sentinel errors used to classify acquisition failures.
var (
	// ErrPermissionDenied indicates the platform refused camera access.
	ErrPermissionDenied = errors.New("preview: camera permission denied")

	// ErrDeviceUnavailable indicates a hardware or driver failure.
	ErrDeviceUnavailable = errors.New("preview: camera device unavailable")
)

// Default capture constraints for the in-call self preview.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Constraints describe the stream to acquire.
type Constraints struct {
	Width       int
	Height      int
	FacingFront bool
	Audio       bool
}

// DefaultConstraints returns the front-facing, audio-disabled preview
// constraints at the default resolution.
func DefaultConstraints() Constraints {
	return Constraints{
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		FacingFront: true,
		Audio:       false,
	}
}

// Track is a single media track of a capture stream.
type Track interface {
	// Kind returns "video" or "audio".
	Kind() string

	// Stop releases the track's underlying device resources.
	Stop() error
}

// Stream is a live capture stream composed of one or more tracks.
type Stream interface {
	Tracks() []Track
}

// Capture acquires capture streams from the platform.
type Capture interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// AlertClass classifies a user-facing acquisition failure.
type AlertClass int

const (
	AlertPermission AlertClass = iota
	AlertDevice
)

func (c AlertClass) String() string {
	switch c {
	case AlertPermission:
		return "permission"
	case AlertDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Alerter surfaces a classified acquisition failure to the user.
type Alerter func(class AlertClass, message string)

// Manager owns the single active preview stream.
type Manager struct {
	capture Capture
	alerter Alerter
	logger  *slog.Logger

	mu     sync.Mutex
	stream Stream
}

// NewManager creates a preview manager over the given capture backend.
// alerter may be nil, in which case failures are only logged.
func NewManager(capture Capture, alerter Alerter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		capture: capture,
		alerter: alerter,
		logger:  logger.With("component", "preview.manager"),
	}
}

// Start acquires the preview stream. Returns false on failure after
// surfacing a classified alert. If a stream is already active it is
// released before the new acquisition.
func (m *Manager) Start(ctx context.Context) bool {
	// Release any previous stream first; ownership is single-instance.
	m.Stop()

	stream, err := m.capture.Acquire(ctx, DefaultConstraints())
	if err != nil {
		class, msg := classify(err)
		m.logger.Warn("preview acquisition failed", "class", class, "error", err)
		if m.alerter != nil {
			m.alerter(class, msg)
		}
		return false
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	m.logger.Debug("preview stream acquired")
	return true
}

// Stop releases the active stream, stopping every track. Safe to call
// on every exit path; a no-op when no stream is held.
func (m *Manager) Stop() {
	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	if stream == nil {
		return
	}

	for _, track := range stream.Tracks() {
		if err := track.Stop(); err != nil {
			m.logger.Warn("track stop failed", "kind", track.Kind(), "error", err)
		}
	}
	m.logger.Debug("preview stream released")
}

// Active reports whether a preview stream is currently held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

func classify(err error) (AlertClass, string) {
	if errors.Is(err, ErrPermissionDenied) {
		return AlertPermission, "Camera access is blocked. Allow camera access to show your preview."
	}
	return AlertDevice, fmt.Sprintf("The camera could not be started: %v", err)
}
