package transport

import "context"

// Driver is the wire-level voice transport consumed by Session.
// Implementations push events through the On* callbacks from their own
// read loop; Session serializes them internally.
type Driver interface {
	// StartSession opens the connection for the given agent. userID may
	// be empty for anonymous sessions.
	StartSession(ctx context.Context, agentID, userID string) error

	// EndSession closes the connection. Must tolerate being called when
	// no session exists.
	EndSession(reason string) error

	// SetMicMuted mutes or unmutes outbound user audio.
	SetMicMuted(muted bool) error

	// SendUserMessage sends a text message into the conversation.
	SendUserMessage(text string) error

	// OnStatus sets the callback for connection status transitions.
	OnStatus(fn func(status Status))

	// OnAudioFrame sets the callback for inbound agent audio frames,
	// delivered as base64-encoded PCM16.
	OnAudioFrame(fn func(frameBase64 string))

	// OnMode sets the callback for speaking/listening transitions.
	// speaking is true while the agent is talking.
	OnMode(fn func(speaking bool))

	// OnError sets the callback for error events. message is
	// human-readable.
	OnError(fn func(message string))

	// OnDisconnect sets the callback for connection loss. reason is one
	// of the Reason* constants.
	OnDisconnect(fn func(reason string))
}
