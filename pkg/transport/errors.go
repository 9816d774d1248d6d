package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transport package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("transport: API key is required")

	// ErrMissingAgentID indicates an empty agent ID was passed to Start.
	ErrMissingAgentID = errors.New("transport: agent ID is required")

	// ErrSessionActive indicates Start was called while a session is
	// already connecting or connected.
	ErrSessionActive = errors.New("transport: session already active")

	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrVoiceUnavailable indicates the voice backend could not start a
	// session. The call does not begin; the caller may retry.
	ErrVoiceUnavailable = errors.New("transport: voice service unavailable")
)

// ConnectionError represents a failure on the underlying connection.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("transport: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsVoiceUnavailable returns true if the error means a session could
// not be started.
func IsVoiceUnavailable(err error) bool {
	return errors.Is(err, ErrVoiceUnavailable)
}
