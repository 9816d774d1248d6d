// Package permission gates access to platform media permissions.
//
// A Gate wraps the platform's runtime permission primitives behind two
// boolean-returning operations, EnsureCamera and EnsureMicrophone. The
// gate never returns an error to its caller: a permission that cannot
// be obtained degrades to false, with hard denials routed through a
// settings prompter so the user can recover from system settings.
package permission

import (
	"context"
	"log/slog"
)

// Kind identifies a platform permission.
type Kind string

const (
	KindCamera     Kind = "camera"
	KindMicrophone Kind = "microphone"
)

// Status is the outcome of a permission check or request.
type Status int

const (
	// StatusGranted means the permission is held.
	StatusGranted Status = iota

	// StatusDenied means the permission was refused but may be
	// requested again later.
	StatusDenied

	// StatusDeniedForever means the platform will not show the prompt
	// again; only the system settings screen can change the outcome.
	StatusDeniedForever
)

func (s Status) String() string {
	switch s {
	case StatusGranted:
		return "granted"
	case StatusDenied:
		return "denied"
	case StatusDeniedForever:
		return "denied_forever"
	default:
		return "unknown"
	}
}

// Platform is the platform permission primitive the gate consumes.
// Check reports the current state without prompting; Request may show
// a system prompt and suspend until the user answers.
type Platform interface {
	Check(ctx context.Context, kind Kind) (Status, error)
	Request(ctx context.Context, kind Kind) (Status, error)
}

// SettingsPrompter is invoked on a hard denial. Implementations present
// a cancel / open-system-settings choice to the user.
type SettingsPrompter func(kind Kind)

// Gate asks the platform for camera and microphone access.
//
// A nil Platform models an environment with no runtime permission
// model; every Ensure call succeeds immediately.
type Gate struct {
	platform Platform
	prompter SettingsPrompter
	logger   *slog.Logger
}

// NewGate creates a permission gate. prompter may be nil, in which case
// hard denials are only logged.
func NewGate(platform Platform, prompter SettingsPrompter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		platform: platform,
		prompter: prompter,
		logger:   logger.With("component", "permission.gate"),
	}
}

// EnsureCamera ensures camera access, prompting if necessary.
func (g *Gate) EnsureCamera(ctx context.Context) bool {
	return g.ensure(ctx, KindCamera)
}

// EnsureMicrophone ensures microphone access, prompting if necessary.
func (g *Gate) EnsureMicrophone(ctx context.Context) bool {
	return g.ensure(ctx, KindMicrophone)
}

func (g *Gate) ensure(ctx context.Context, kind Kind) bool {
	if g.platform == nil {
		// No runtime permission model on this platform.
		return true
	}

	status, err := g.platform.Check(ctx, kind)
	if err != nil {
		g.logger.Warn("permission check failed", "kind", kind, "error", err)
		return false
	}
	if status == StatusGranted {
		return true
	}

	status, err = g.platform.Request(ctx, kind)
	if err != nil {
		g.logger.Warn("permission request failed", "kind", kind, "error", err)
		return false
	}

	switch status {
	case StatusGranted:
		return true
	case StatusDeniedForever:
		g.logger.Info("permission denied permanently", "kind", kind)
		if g.prompter != nil {
			g.prompter(kind)
		}
		return false
	default:
		g.logger.Info("permission denied", "kind", kind)
		return false
	}
}
