package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const elevenLabsBaseURL = "wss://api.elevenlabs.io/v1/convai/conversation"

// ElevenLabs implements Driver for the ElevenLabs Agents Platform.
type ElevenLabs struct {
	config *Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	active    bool
	micMuted  bool
	cancelCtx context.CancelFunc

	// Callbacks
	onStatus     func(Status)
	onAudioFrame func(string)
	onMode       func(bool)
	onError      func(string)
	onDisconnect func(string)
}

// NewElevenLabs creates a new ElevenLabs transport driver.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = elevenLabsBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ElevenLabs{
		config: cfg,
		logger: cfg.Logger.With("component", "transport.elevenlabs"),
	}, nil
}

// StartSession implements Driver.
func (e *ElevenLabs) StartSession(ctx context.Context, agentID, userID string) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return ErrSessionActive
	}
	e.active = true
	e.mu.Unlock()

	wsURL, err := url.Parse(e.config.BaseURL)
	if err != nil {
		e.setInactive()
		return fmt.Errorf("transport.elevenlabs: invalid URL: %w", err)
	}
	q := wsURL.Query()
	q.Set("agent_id", agentID)
	if userID != "" {
		q.Set("user_id", userID)
	}
	wsURL.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: e.config.Timeout,
	}

	e.logger.Info("connecting to ElevenLabs Agents Platform", "agent_id", agentID)

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), headers)
	if err != nil {
		e.setInactive()
		if resp != nil {
			return &ConnectionError{
				Reason: fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				Cause:  err,
			}
		}
		return &ConnectionError{Reason: "dial failed", Cause: err}
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.conn = conn
	e.cancelCtx = cancel
	e.mu.Unlock()

	go e.handleMessages(msgCtx)
	return nil
}

// EndSession implements Driver. Tolerates being called when no session
// exists.
func (e *ElevenLabs) EndSession(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return nil
	}

	if e.cancelCtx != nil {
		e.cancelCtx()
		e.cancelCtx = nil
	}
	if e.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = e.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			deadline,
		)
		e.conn.Close()
		e.conn = nil
	}
	e.active = false
	e.micMuted = false
	e.logger.Info("disconnected from ElevenLabs Agents Platform", "reason", reason)
	return nil
}

// SetMicMuted implements Driver. The ConvAI protocol has no server-side
// mute, so outbound audio is dropped client-side while muted.
func (e *ElevenLabs) SetMicMuted(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.micMuted = muted
	return nil
}

// SendUserMessage implements Driver.
func (e *ElevenLabs) SendUserMessage(text string) error {
	msg := map[string]string{
		"type": "user_message",
		"text": text,
	}
	return e.writeJSON(msg)
}

// SendAudio streams one chunk of user PCM16 audio. Dropped silently
// while the mic is muted.
func (e *ElevenLabs) SendAudio(pcm16 []byte) error {
	e.mu.RLock()
	muted := e.micMuted
	e.mu.RUnlock()
	if muted {
		return nil
	}

	msg := map[string]string{
		"user_audio_chunk": base64.StdEncoding.EncodeToString(pcm16),
	}
	return e.writeJSON(msg)
}

// OnStatus implements Driver.
func (e *ElevenLabs) OnStatus(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStatus = fn
}

// OnAudioFrame implements Driver.
func (e *ElevenLabs) OnAudioFrame(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAudioFrame = fn
}

// OnMode implements Driver.
func (e *ElevenLabs) OnMode(fn func(bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMode = fn
}

// OnError implements Driver.
func (e *ElevenLabs) OnError(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// OnDisconnect implements Driver.
func (e *ElevenLabs) OnDisconnect(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnect = fn
}

func (e *ElevenLabs) writeJSON(msg any) error {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport.elevenlabs: marshal failed: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Reason: "write failed", Cause: err}
	}
	return nil
}

func (e *ElevenLabs) setInactive() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

// handleMessages processes incoming websocket messages until the
// connection closes.
func (e *ElevenLabs) handleMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.mu.RLock()
		conn := e.conn
		e.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Info("connection closed normally")
				e.emitDisconnect(ReasonClosed)
				return
			}
			e.logger.Error("read error", "error", err)
			e.emitDisconnect(ReasonError)
			return
		}

		var msg convaiIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("failed to parse message", "error", err)
			continue
		}

		e.handleMessage(msg)
	}
}

// handleMessage maps one ConvAI message onto the driver event stream.
func (e *ElevenLabs) handleMessage(msg convaiIncoming) {
	switch msg.Type {
	case "conversation_initiation_metadata":
		e.emitStatus(StatusConnected)

	case "audio":
		// Nested (audio_event) and flat (audio) formats both occur.
		frame := msg.Audio
		if msg.AudioEvent != nil && msg.AudioEvent.AudioBase64 != "" {
			frame = msg.AudioEvent.AudioBase64
		}
		if frame != "" {
			e.emitMode(true)
			e.emitAudioFrame(frame)
		}

	case "audio_done", "agent_response_done":
		e.emitMode(false)

	case "interruption":
		e.emitMode(false)

	case "error":
		message := msg.Message
		if message == "" {
			message = "voice service error"
		}
		e.emitError(message)

	case "ping":
		eventID := 0
		if msg.PingEvent != nil {
			eventID = msg.PingEvent.EventID
		}
		e.sendPong(eventID)

	default:
		e.logger.Debug("unhandled message type", "type", msg.Type)
	}
}

// sendPong responds to a ping message with the event_id.
func (e *ElevenLabs) sendPong(eventID int) {
	_ = e.writeJSON(map[string]any{
		"type":     "pong",
		"event_id": eventID,
	})
}

// Emit helpers

func (e *ElevenLabs) emitStatus(status Status) {
	e.mu.RLock()
	fn := e.onStatus
	e.mu.RUnlock()
	if fn != nil {
		fn(status)
	}
}

func (e *ElevenLabs) emitAudioFrame(frame string) {
	e.mu.RLock()
	fn := e.onAudioFrame
	e.mu.RUnlock()
	if fn != nil {
		fn(frame)
	}
}

func (e *ElevenLabs) emitMode(speaking bool) {
	e.mu.RLock()
	fn := e.onMode
	e.mu.RUnlock()
	if fn != nil {
		fn(speaking)
	}
}

func (e *ElevenLabs) emitError(message string) {
	e.mu.RLock()
	fn := e.onError
	e.mu.RUnlock()
	if fn != nil {
		fn(message)
	}
}

func (e *ElevenLabs) emitDisconnect(reason string) {
	e.setInactive()
	e.mu.RLock()
	fn := e.onDisconnect
	e.mu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

// Message types for the ConvAI websocket protocol.

type convaiIncoming struct {
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	AudioEvent *convaiAudioEvent `json:"audio_event,omitempty"`
	PingEvent  *convaiPingEvent  `json:"ping_event,omitempty"`
}

type convaiAudioEvent struct {
	EventID     int    `json:"event_id"`
	AudioBase64 string `json:"audio_base_64"`
}

type convaiPingEvent struct {
	EventID int `json:"event_id"`
	PingMs  int `json:"ping_ms,omitempty"`
}

// Ensure ElevenLabs implements Driver.
var _ Driver = (*ElevenLabs)(nil)
