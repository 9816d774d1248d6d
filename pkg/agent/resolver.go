package agent

import (
	"context"
	"log/slog"
	"sync"
)

// Resolver maps character IDs to voice agent IDs, caching successful
// lookups for the life of the process. Failed lookups are not cached so
// a later call can retry the catalog.
type Resolver struct {
	catalog Catalog
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(catalog Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		catalog: catalog,
		logger:  logger.With("component", "agent.resolver"),
		cache:   make(map[string]string),
	}
}

// ResolveAgentID returns the voice agent ID for the given character, or
// "" when the character is unknown, has no voice agent configured, or
// the catalog is unreachable. Only lookups that produce an agent are
// cached; empty results stay uncached so a later call can retry.
func (r *Resolver) ResolveAgentID(ctx context.Context, characterID string) string {
	if characterID == "" {
		return ""
	}

	r.mu.RLock()
	agentID, ok := r.cache[characterID]
	r.mu.RUnlock()
	if ok {
		return agentID
	}

	character, err := r.catalog.Character(ctx, characterID)
	if err != nil {
		r.logger.Warn("character lookup failed", "character_id", characterID, "error", err)
		return ""
	}
	if character.VoiceAgentID == "" {
		r.logger.Warn("character has no voice agent", "character_id", characterID)
		return ""
	}

	r.mu.Lock()
	r.cache[characterID] = character.VoiceAgentID
	r.mu.Unlock()

	return character.VoiceAgentID
}
