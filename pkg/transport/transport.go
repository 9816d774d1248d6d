// Package transport wraps a single realtime voice connection to the
// conversational agent backend.
//
// A Session tracks connection status, derives a smoothed speaking-volume
// envelope from inbound audio frames, and keeps a call-duration clock
// while connected. The underlying wire protocol lives behind the Driver
// interface; the package ships an ElevenLabs ConvAI driver and a mock
// for tests.
//
// Example usage:
//
//	driver, err := transport.NewElevenLabs(
//	    transport.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := transport.NewSession(transport.SessionConfig{
//	    Driver: driver,
//	    OnError: func(msg string) {
//	        // Show a notification
//	    },
//	})
//
//	if err := session.Start(ctx, agentID, userID); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.End()
package transport

// Status represents the state of the transport connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Disconnect reasons reported by drivers. A reason of ReasonError is
// surfaced to the user the same way an explicit error event is.
const (
	ReasonUser   = "user"
	ReasonClosed = "closed"
	ReasonError  = "error"
)

// State is a read-only snapshot of the transport session. All fields
// reset to their zero values whenever the session disconnects.
type State struct {
	Status       Status
	SessionID    string
	IsBooting    bool
	IsMuted      bool
	IsSpeaking   bool
	AgentVolume  float64
	CallDuration int
}
