package agent

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// SupabaseCatalog reads characters from a Supabase "characters" table.
type SupabaseCatalog struct {
	client *supabase.Client
}

// NewSupabaseCatalog connects to the Supabase project backing the
// character directory.
func NewSupabaseCatalog(url, apiKey string) (*SupabaseCatalog, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseCatalog{client: client}, nil
}

// Character implements Catalog.
func (c *SupabaseCatalog) Character(ctx context.Context, id string) (*Character, error) {
	var characters []Character
	_, err := c.client.From("characters").
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&characters)
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	if len(characters) == 0 {
		return nil, ErrCharacterNotFound
	}
	return &characters[0], nil
}

var _ Catalog = (*SupabaseCatalog)(nil)
