package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emberchat/callkit/pkg/permission"
	"github.com/emberchat/callkit/pkg/preview"
	"github.com/emberchat/callkit/pkg/quota"
	"github.com/emberchat/callkit/pkg/transport"
)

// Failure modes of a toggle operation. The controller has already
// surfaced any user-facing message by the time these are returned.
var (
	ErrMicrophoneDenied = errors.New("microphone permission denied")
	ErrAgentUnavailable = errors.New("no voice agent for character")
)

const voiceUnavailableMessage = "Voice is unavailable right now. Please try again later."

// defaultTickInterval is the quota countdown cadence.
const defaultTickInterval = time.Second

// Config configures a Controller.
type Config struct {
	// Permissions gates camera and microphone access. A nil gate
	// grants everything, for platforms without runtime permissions.
	Permissions *permission.Gate

	// Preview manages the camera self-preview stream. Optional; a nil
	// manager means camera calls run without a preview.
	Preview *preview.Manager

	// Driver is the wire-level voice transport. Required.
	Driver transport.Driver

	// Resolver maps the character to its voice agent. Required.
	Resolver AgentResolver

	// Meter tracks the user's remaining call budget. Required.
	Meter *quota.Meter

	// CharacterID and UserID identify the conversation parties.
	CharacterID string
	UserID      string

	// VisualBridge is the fire-and-forget side channel driving
	// camera-mode visual hints. Invoked with true while in camera
	// mode, false otherwise. Optional.
	VisualBridge func(active bool)

	// OnQuotaExhausted fires when the budget runs out. Optional.
	OnQuotaExhausted func()

	// OnNotice receives user-facing messages. Optional.
	OnNotice func(message string)

	// OnState receives a merged snapshot after state changes. Optional.
	OnState func(Snapshot)

	// TickInterval overrides the one-second countdown cadence.
	TickInterval time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Controller is the call session state machine. One controller owns at
// most one live call; overlapping toggles are dropped while a previous
// toggle is still resolving.
type Controller struct {
	permissions  *permission.Gate
	preview      *preview.Manager
	session      *transport.Session
	resolver     AgentResolver
	meter        *quota.Meter
	characterID  string
	userID       string
	visualBridge func(bool)
	onExhausted  func()
	onNotice     func(string)
	onState      func(Snapshot)
	logger       *slog.Logger
	tick         time.Duration

	mu                sync.Mutex
	mode              Mode
	isSwitching       bool
	isProcessing      bool
	voiceBeforeCamera bool
	countdownCancel   context.CancelFunc
	closed            bool
}

// NewController wires the collaborators into a controller and
// subscribes to the transport event stream.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "call.controller")

	permissions := cfg.Permissions
	if permissions == nil {
		permissions = permission.NewGate(nil, nil, logger)
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	c := &Controller{
		permissions:  permissions,
		preview:      cfg.Preview,
		resolver:     cfg.Resolver,
		meter:        cfg.Meter,
		characterID:  cfg.CharacterID,
		userID:       cfg.UserID,
		visualBridge: cfg.VisualBridge,
		onExhausted:  cfg.OnQuotaExhausted,
		onNotice:     cfg.OnNotice,
		onState:      cfg.OnState,
		logger:       logger,
		tick:         tick,
	}

	c.session = transport.NewSession(transport.SessionConfig{
		Driver:        cfg.Driver,
		OnError:       c.notice,
		OnStateChange: c.handleTransportState,
		Logger:        cfg.Logger,
	})

	return c
}

// Session exposes the underlying transport session for operations the
// controller does not mediate, such as mute and text messages.
func (c *Controller) Session() *transport.Session {
	return c.session
}

// Mode returns the current call mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Snapshot returns the merged read-only view for the UI layer.
func (c *Controller) Snapshot() Snapshot {
	state := c.session.State()
	remaining := c.meter.Remaining()

	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Mode:             c.mode,
		IsSwitching:      c.isSwitching,
		IsProcessing:     c.isProcessing,
		RemainingSeconds: remaining,
		Transport:        state,
	}
}

// ToggleVoice starts a voice call from idle, or ends the current call
// in any connected mode. Dropped while another toggle is resolving or
// the transport is mid-connect.
func (c *Controller) ToggleVoice(ctx context.Context) error {
	release, ok := c.beginSwitch()
	if !ok {
		return nil
	}
	defer release()

	if c.Mode() == ModeNone {
		return c.startCall(ctx, ModeVoice)
	}
	c.teardown()
	return nil
}

// ToggleCamera moves between camera mode and whatever came before it:
// from idle it starts a fresh camera call, from voice it upgrades in
// place without restarting the transport session, and from camera it
// drops back to voice (when the call began as voice) or ends entirely.
func (c *Controller) ToggleCamera(ctx context.Context) error {
	release, ok := c.beginSwitch()
	if !ok {
		return nil
	}
	defer release()

	switch c.Mode() {
	case ModeCamera:
		c.stopPreview()
		c.mu.Lock()
		wasVoice := c.voiceBeforeCamera
		c.voiceBeforeCamera = false
		c.mu.Unlock()
		if wasVoice {
			c.applyMode(ModeVoice)
			return nil
		}
		c.teardown()
		return nil

	case ModeVoice:
		// Best effort: a missing preview does not block the upgrade.
		if c.permissions.EnsureCamera(ctx) {
			c.startPreview(ctx)
		}
		c.mu.Lock()
		c.voiceBeforeCamera = true
		c.mu.Unlock()
		c.applyMode(ModeCamera)
		return nil

	default:
		return c.startCall(ctx, ModeCamera)
	}
}

// EndCall ends the current call, whatever its mode. No-op when idle.
func (c *Controller) EndCall() {
	release, ok := c.beginSwitch()
	if !ok {
		return
	}
	defer release()

	if c.Mode() == ModeNone {
		return
	}
	c.teardown()
}

// Close tears the controller down unconditionally: the call ends, the
// preview and countdown stop, and remaining budget is persisted. The
// controller accepts no further toggles. Safe to call repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stopPreview()
	c.session.End()
}

// beginSwitch claims the toggle mutex. A second toggle issued before
// the first resolves is dropped, as is any toggle while the transport
// is still connecting.
func (c *Controller) beginSwitch() (func(), bool) {
	status := c.session.Status()

	c.mu.Lock()
	if c.closed || c.isSwitching || status == transport.StatusConnecting {
		c.mu.Unlock()
		return nil, false
	}
	c.isSwitching = true
	c.isProcessing = true
	c.mu.Unlock()
	c.emitState()

	release := func() {
		c.mu.Lock()
		c.isSwitching = false
		c.isProcessing = false
		c.mu.Unlock()
		c.emitState()
	}
	return release, true
}

// startCall runs the full start sequence from idle: quota gate,
// permissions, preview (camera mode only, best effort), agent
// resolution, then transport start. Any failure leaves the mode at
// none with the preview released.
func (c *Controller) startCall(ctx context.Context, target Mode) error {
	remaining := c.meter.Fetch(ctx)
	if c.meter.Tier() != quota.TierPrivileged && remaining <= 0 {
		c.fireExhausted()
		return nil
	}

	previewStarted := false
	if target == ModeCamera && c.permissions.EnsureCamera(ctx) {
		previewStarted = c.startPreview(ctx)
	}

	if !c.permissions.EnsureMicrophone(ctx) {
		if previewStarted {
			c.stopPreview()
		}
		c.applyMode(ModeNone)
		return ErrMicrophoneDenied
	}

	agentID := c.resolver.ResolveAgentID(ctx, c.characterID)
	if agentID == "" {
		if previewStarted {
			c.stopPreview()
		}
		c.notice(voiceUnavailableMessage)
		c.applyMode(ModeNone)
		return ErrAgentUnavailable
	}

	if err := c.session.Start(ctx, agentID, c.userID); err != nil {
		c.logger.Warn("transport start failed", "error", err)
		if previewStarted {
			c.stopPreview()
		}
		c.notice(voiceUnavailableMessage)
		c.applyMode(ModeNone)
		return err
	}

	c.mu.Lock()
	c.voiceBeforeCamera = false
	c.mu.Unlock()
	c.applyMode(target)
	return nil
}

// teardown ends the live call. The disconnect callback performs the
// shared cleanup: countdown cancellation, quota flush, and mode reset.
func (c *Controller) teardown() {
	c.stopPreview()
	c.session.End()
}

// applyMode commits a mode transition and keeps the visual bridge in
// lockstep with it, including on failure paths.
func (c *Controller) applyMode(mode Mode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()

	if c.visualBridge != nil {
		c.visualBridge(mode == ModeCamera)
	}
	c.emitState()
}

// handleTransportState reacts to transport transitions: entering
// Connected starts the quota countdown, entering Disconnected runs the
// shared teardown cleanup regardless of what ended the call.
func (c *Controller) handleTransportState(state transport.State) {
	switch state.Status {
	case transport.StatusConnected:
		c.startCountdown()
	case transport.StatusDisconnected:
		c.handleDisconnected()
	}
	c.emitState()
}

func (c *Controller) handleDisconnected() {
	c.mu.Lock()
	if c.countdownCancel != nil {
		c.countdownCancel()
		c.countdownCancel = nil
	}
	hadCall := c.mode != ModeNone
	c.mode = ModeNone
	c.voiceBeforeCamera = false
	c.mu.Unlock()

	if !hadCall {
		return
	}
	c.stopPreview()
	c.meter.Flush(context.Background())
	if c.visualBridge != nil {
		c.visualBridge(false)
	}
}

// startCountdown launches the one-second quota countdown. If the
// budget is already empty when the call connects, the call ends
// immediately without waiting for a tick.
func (c *Controller) startCountdown() {
	c.mu.Lock()
	if c.countdownCancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.countdownCancel = cancel
	c.mu.Unlock()

	if c.meter.Exhausted() {
		go c.endExhausted()
		return
	}
	go c.runCountdown(ctx)
}

// runCountdown consumes one second of budget per tick while the call
// is connected. Ticks are skipped, not consumed, while a toggle is
// mid-flight.
func (c *Controller) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.session.Status() != transport.StatusConnected {
				return
			}
			c.mu.Lock()
			paused := c.isProcessing
			c.mu.Unlock()
			if paused {
				continue
			}

			result := c.meter.Tick(context.Background())
			if result.Exhausted {
				c.endExhausted()
				return
			}
			c.emitState()
		}
	}
}

func (c *Controller) endExhausted() {
	c.logger.Info("call budget exhausted, ending call")
	c.fireExhausted()
	c.teardown()
}

func (c *Controller) fireExhausted() {
	if c.onExhausted != nil {
		c.onExhausted()
	}
}

func (c *Controller) startPreview(ctx context.Context) bool {
	if c.preview == nil {
		return false
	}
	return c.preview.Start(ctx)
}

func (c *Controller) stopPreview() {
	if c.preview != nil {
		c.preview.Stop()
	}
}

func (c *Controller) notice(message string) {
	if c.onNotice != nil {
		c.onNotice(message)
	}
}

func (c *Controller) emitState() {
	if c.onState != nil {
		c.onState(c.Snapshot())
	}
}
