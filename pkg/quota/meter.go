package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MeterConfig configures a Meter.
type MeterConfig struct {
	// Store is the backend quota store. Required.
	Store Store

	// UserID keys the persisted record.
	UserID string

	// Tier selects the default budget and reset cadence.
	Tier Tier

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// TickResult reports the outcome of one countdown tick.
type TickResult struct {
	Remaining int
	Persisted bool
	Exhausted bool
}

// Meter tracks one user's remaining call seconds. Fetch loads the
// working value, Tick decrements it once per connected second, and
// Flush persists the remainder at teardown. The ticking cadence itself
// belongs to the caller; the meter only applies the bookkeeping rules.
type Meter struct {
	store  Store
	logger *slog.Logger
	userID string
	tier   Tier

	mu         sync.Mutex
	remaining  int
	lastSynced int
	loaded     bool
	resetAt    *time.Time

	// Overridable for deterministic tests.
	now func() time.Time
}

// NewMeter creates a meter for one user.
func NewMeter(cfg MeterConfig) *Meter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{
		store:      cfg.Store,
		logger:     logger.With("component", "quota.meter"),
		userID:     cfg.UserID,
		tier:       cfg.Tier,
		lastSynced: -1,
		now:        time.Now,
	}
}

// Fetch loads the remaining budget from the store, initializing a
// record at the tier default when none exists and applying the
// privileged monthly reset when due. An unreachable backend falls back
// to the tier default: an outage grants the benefit of the doubt
// instead of a zero budget.
func (m *Meter) Fetch(ctx context.Context) int {
	fallback := DefaultSeconds(m.tier)

	rec, err := m.store.Fetch(ctx, m.userID)
	if err != nil {
		m.logger.Warn("quota fetch failed, assuming full budget", "user_id", m.userID, "error", err)
		m.setWorking(fallback, nil)
		return fallback
	}

	now := m.now()
	if rec == nil {
		rec = &Record{RemainingSeconds: fallback, Tier: m.tier, LastResetAt: &now}
		if err := m.store.Save(ctx, m.userID, rec); err != nil {
			m.logger.Warn("quota init failed", "user_id", m.userID, "error", err)
		}
		m.setWorking(rec.RemainingSeconds, rec.LastResetAt)
		return rec.RemainingSeconds
	}

	if m.tier == TierPrivileged && monthlyResetDue(rec.LastResetAt, now) {
		rec.RemainingSeconds = fallback
		rec.Tier = m.tier
		rec.LastResetAt = &now
		if err := m.store.Save(ctx, m.userID, rec); err != nil {
			m.logger.Warn("quota reset failed", "user_id", m.userID, "error", err)
		}
		m.logger.Info("monthly quota reset", "user_id", m.userID, "seconds", fallback)
	}

	m.setWorking(rec.RemainingSeconds, rec.LastResetAt)
	return rec.RemainingSeconds
}

func (m *Meter) setWorking(seconds int, resetAt *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = seconds
	m.resetAt = resetAt
	m.loaded = true
}

// Tier returns the tier this meter was configured with.
func (m *Meter) Tier() Tier {
	return m.tier
}

// Remaining returns the current working value.
func (m *Meter) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Exhausted reports whether the working value has reached zero.
func (m *Meter) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded && m.remaining <= 0
}

// Tick consumes one second of budget. It persists opportunistically
// when the value lands on a multiple of five, and persists zero when
// the budget runs out. The returned result tells the caller whether
// the call must end.
func (m *Meter) Tick(ctx context.Context) TickResult {
	m.mu.Lock()
	if m.remaining <= 0 {
		m.mu.Unlock()
		m.Persist(ctx, 0)
		return TickResult{Remaining: 0, Persisted: true, Exhausted: true}
	}

	m.remaining--
	remaining := m.remaining
	m.mu.Unlock()

	switch {
	case remaining == 0:
		m.Persist(ctx, 0)
		return TickResult{Remaining: 0, Persisted: true, Exhausted: true}
	case remaining%5 == 0:
		m.Persist(ctx, remaining)
		return TickResult{Remaining: remaining, Persisted: true}
	default:
		return TickResult{Remaining: remaining}
	}
}

// Persist writes the given value to the store. Errors are logged and
// swallowed: the in-memory value stays authoritative for the call.
func (m *Meter) Persist(ctx context.Context, seconds int) {
	if seconds < 0 {
		seconds = 0
	}

	m.mu.Lock()
	rec := &Record{RemainingSeconds: seconds, Tier: m.tier, LastResetAt: m.resetAt}
	m.mu.Unlock()

	if err := m.store.Save(ctx, m.userID, rec); err != nil {
		m.logger.Warn("quota persist failed", "user_id", m.userID, "seconds", seconds, "error", err)
		return
	}

	m.mu.Lock()
	m.lastSynced = seconds
	m.mu.Unlock()
}

// Flush persists the working value at teardown when it is positive and
// ahead of the last successful sync, so a call ended between two
// periodic writes does not lose unspent budget.
func (m *Meter) Flush(ctx context.Context) {
	m.mu.Lock()
	loaded := m.loaded
	remaining := m.remaining
	lastSynced := m.lastSynced
	m.mu.Unlock()

	if !loaded || remaining <= 0 || remaining == lastSynced {
		return
	}
	m.Persist(ctx, remaining)
}

// monthlyResetDue reports whether lastResetAt falls outside the current
// calendar month. A missing stamp counts as due.
func monthlyResetDue(lastResetAt *time.Time, now time.Time) bool {
	if lastResetAt == nil {
		return true
	}
	return lastResetAt.Year() != now.Year() || lastResetAt.Month() != now.Month()
}
