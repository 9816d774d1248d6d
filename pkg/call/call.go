// Package call implements the top-level call session state machine for
// companion voice and camera calls.
//
// The Controller composes the permission gate, the media preview
// manager, the transport session, the agent resolver, and the quota
// meter into two user-facing toggles. It guarantees one call at a time,
// drops overlapping toggles, releases the camera stream on every exit
// path, and runs the quota countdown while the call is connected.
package call

import (
	"context"

	"github.com/emberchat/callkit/pkg/transport"
)

// Mode is the user-visible call type.
type Mode int

const (
	ModeNone Mode = iota
	ModeVoice
	ModeCamera
)

func (m Mode) String() string {
	switch m {
	case ModeVoice:
		return "voice"
	case ModeCamera:
		return "camera"
	default:
		return "none"
	}
}

// AgentResolver maps a character to its voice agent.
// *agent.Resolver satisfies this.
type AgentResolver interface {
	ResolveAgentID(ctx context.Context, characterID string) string
}

// Snapshot is the merged read-only view the UI layer observes.
type Snapshot struct {
	Mode             Mode
	IsSwitching      bool
	IsProcessing     bool
	RemainingSeconds int
	Transport        transport.State
}
