// Package agent resolves companion characters to the voice agents that
// power their calls.
//
// A Catalog is the backing directory of characters. The Resolver sits in
// front of it with a process-lifetime cache so that each character costs
// at most one successful lookup.
package agent

import (
	"context"
	"errors"
)

// ErrCharacterNotFound is returned when the catalog has no character
// with the requested ID.
var ErrCharacterNotFound = errors.New("character not found")

// Character is one companion persona from the catalog.
type Character struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	VoiceAgentID string `json:"voice_agent_id"`
}

// Catalog looks up characters in a backing directory.
type Catalog interface {
	// Character returns the character with the given ID, or
	// ErrCharacterNotFound when it does not exist.
	Character(ctx context.Context, id string) (*Character, error)
}
