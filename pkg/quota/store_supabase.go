package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// supabaseStore implements Store on a Supabase "call_quotas" table.
type supabaseStore struct {
	client *supabase.Client
}

// quotaRow mirrors one row of the call_quotas table.
type quotaRow struct {
	UserID           string     `json:"user_id"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Tier             Tier       `json:"tier"`
	LastResetAt      *time.Time `json:"last_reset_at,omitempty"`
}

// NewSupabaseStore connects to the Supabase project backing the quota
// table.
func NewSupabaseStore(url, apiKey string) (Store, error) {
	if url == "" || apiKey == "" {
		return nil, ErrInvalidConfig
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &supabaseStore{client: client}, nil
}

// Fetch implements Store.
func (s *supabaseStore) Fetch(ctx context.Context, userID string) (*Record, error) {
	var rows []quotaRow
	_, err := s.client.From("call_quotas").
		Select("*", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quota: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &Record{
		RemainingSeconds: row.RemainingSeconds,
		Tier:             row.Tier,
		LastResetAt:      row.LastResetAt,
	}, nil
}

// Save implements Store.
func (s *supabaseStore) Save(ctx context.Context, userID string, rec *Record) error {
	row := quotaRow{
		UserID:           userID,
		RemainingSeconds: rec.RemainingSeconds,
		Tier:             rec.Tier,
		LastResetAt:      rec.LastResetAt,
	}

	_, _, err := s.client.From("call_quotas").
		Insert(row, true, "user_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save quota: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *supabaseStore) Close() error {
	return nil
}
