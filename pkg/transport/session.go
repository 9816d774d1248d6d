package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Driver is the wire-level transport. Required.
	Driver Driver

	// OnError receives human-readable messages for error events and
	// error-classified disconnects. Optional.
	OnError func(message string)

	// OnStateChange receives a snapshot after every state mutation.
	// Optional; used by the UI layer and the call controller.
	OnStateChange func(State)

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Session wraps one realtime voice connection.
//
// Status follows Disconnected -> Connecting -> Connected -> Disconnected;
// entering Connected starts the one-second call-duration clock, entering
// Disconnected resets mute, speaking, volume, and duration to defaults
// and stops the clock. Reconnection is the caller's decision: an
// error-classified disconnect is surfaced and the session simply ends.
type Session struct {
	driver  Driver
	logger  *slog.Logger
	onError func(string)
	onState func(State)

	mu      sync.Mutex
	state   State
	startAt time.Time

	clockCancel context.CancelFunc

	// Overridable for deterministic tests.
	now       func() time.Time
	clockTick time.Duration
}

// NewSession creates a session over the given driver and subscribes to
// its event stream.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		driver:    cfg.Driver,
		logger:    logger.With("component", "transport.session"),
		onError:   cfg.OnError,
		onState:   cfg.OnStateChange,
		now:       time.Now,
		clockTick: time.Second,
	}

	d := cfg.Driver
	d.OnStatus(s.handleStatus)
	d.OnAudioFrame(s.handleAudioFrame)
	d.OnMode(s.handleMode)
	d.OnError(s.handleError)
	d.OnDisconnect(s.handleDisconnect)

	return s
}

// Start opens a session for the given agent. Returns ErrSessionActive
// while a session is connecting or connected, and ErrVoiceUnavailable
// when the driver cannot establish one.
func (s *Session) Start(ctx context.Context, agentID, userID string) error {
	if agentID == "" {
		return ErrMissingAgentID
	}

	s.mu.Lock()
	if s.state.Status != StatusDisconnected {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state.Status = StatusConnecting
	s.state.IsBooting = true
	s.state.SessionID = uuid.NewString()
	snapshot := s.state
	s.mu.Unlock()
	s.notify(snapshot)

	if err := s.driver.StartSession(ctx, agentID, userID); err != nil {
		s.mu.Lock()
		s.resetLocked()
		snapshot = s.state
		s.mu.Unlock()
		s.notify(snapshot)
		return fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}
	return nil
}

// End closes the session. Idempotent: errors from the driver are logged
// and swallowed, and ending an already-ended session is a no-op.
func (s *Session) End() {
	s.mu.Lock()
	s.state.IsBooting = false
	s.mu.Unlock()

	if err := s.driver.EndSession(ReasonUser); err != nil {
		s.logger.Warn("end session failed", "error", err)
	}
	s.handleStatus(StatusDisconnected)
}

// SetMicMuted mutes outbound audio. Only meaningful while connected;
// otherwise it has no observable effect.
func (s *Session) SetMicMuted(muted bool) {
	s.mu.Lock()
	if s.state.Status != StatusConnected {
		s.mu.Unlock()
		return
	}
	s.state.IsMuted = muted
	snapshot := s.state
	s.mu.Unlock()

	if err := s.driver.SetMicMuted(muted); err != nil {
		s.logger.Warn("set mic muted failed", "muted", muted, "error", err)
	}
	s.notify(snapshot)
}

// SendText sends a text message into the live conversation.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	connected := s.state.Status == StatusConnected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return s.driver.SendUserMessage(text)
}

// State returns a snapshot of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// handleStatus applies a status transition and its side effects.
func (s *Session) handleStatus(status Status) {
	s.mu.Lock()
	prev := s.state.Status
	if prev == status {
		s.mu.Unlock()
		return
	}
	s.state.Status = status

	switch status {
	case StatusConnected:
		s.state.IsBooting = false
		s.state.CallDuration = 0
		s.startAt = s.now()
		s.startClockLocked()
	case StatusDisconnected:
		s.resetLocked()
	}
	snapshot := s.state
	s.mu.Unlock()

	s.logger.Debug("status transition", "from", prev, "to", status)
	s.notify(snapshot)
}

// resetLocked restores disconnected defaults. Caller holds s.mu.
func (s *Session) resetLocked() {
	if s.clockCancel != nil {
		s.clockCancel()
		s.clockCancel = nil
	}
	s.state = State{}
}

// startClockLocked launches the one-second duration clock. Caller holds
// s.mu and has set startAt.
func (s *Session) startClockLocked() {
	if s.clockCancel != nil {
		s.clockCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.clockCancel = cancel

	go func() {
		ticker := time.NewTicker(s.clockTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.state.Status != StatusConnected {
					s.mu.Unlock()
					return
				}
				s.state.CallDuration = int(s.now().Sub(s.startAt) / time.Second)
				snapshot := s.state
				s.mu.Unlock()
				s.notify(snapshot)
			}
		}
	}()
}

// handleAudioFrame updates the volume envelope from one inbound frame.
// Broken frames decay the envelope instead of erroring.
func (s *Session) handleAudioFrame(frameBase64 string) {
	s.mu.Lock()
	if norm, ok := frameVolume(frameBase64); ok {
		s.state.AgentVolume = smoothVolume(s.state.AgentVolume, norm)
	} else {
		s.state.AgentVolume *= volumeDecay
	}
	snapshot := s.state
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *Session) handleMode(speaking bool) {
	s.mu.Lock()
	s.state.IsSpeaking = speaking
	snapshot := s.state
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *Session) handleError(message string) {
	s.logger.Warn("transport error", "message", message)
	if s.onError != nil {
		s.onError(message)
	}
}

// handleDisconnect tears the session down. An error-classified reason
// is surfaced like an explicit error event; no reconnection is
// attempted either way.
func (s *Session) handleDisconnect(reason string) {
	if reason == ReasonError {
		s.handleError("The call ended unexpectedly. Please try again.")
	} else {
		s.logger.Info("session disconnected", "reason", reason)
	}
	s.handleStatus(StatusDisconnected)
}

func (s *Session) notify(snapshot State) {
	if s.onState != nil {
		s.onState(snapshot)
	}
}
