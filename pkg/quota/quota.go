// Package quota meters the per-user call-time budget.
//
// A Store persists QuotaRecords in a backend; the Meter holds the
// in-memory working copy for the active call and owns the countdown
// bookkeeping. The in-memory value is authoritative while a call is
// live: persistence failures are logged and swallowed rather than
// interrupting the call.
package quota

import (
	"context"
	"errors"
	"time"
)

// Tier classifies the user's subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPrivileged Tier = "privileged"
)

// Default call-time budgets in seconds.
const (
	DefaultFreeSeconds       = 300
	DefaultPrivilegedSeconds = 3600
)

// DefaultSeconds returns the default budget for a tier.
func DefaultSeconds(tier Tier) int {
	if tier == TierPrivileged {
		return DefaultPrivilegedSeconds
	}
	return DefaultFreeSeconds
}

// Record is one user's persisted quota state.
type Record struct {
	RemainingSeconds int        `json:"remaining_seconds"`
	Tier             Tier       `json:"tier"`
	LastResetAt      *time.Time `json:"last_reset_at,omitempty"`
}

// Store persists quota records keyed by user ID.
type Store interface {
	// Fetch returns the user's record, or (nil, nil) when none exists.
	Fetch(ctx context.Context, userID string) (*Record, error)

	// Save upserts the user's record.
	Save(ctx context.Context, userID string, rec *Record) error

	// Close releases store resources.
	Close() error
}

// Store construction errors.
var (
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrInvalidConfig    = errors.New("invalid store configuration")
)
