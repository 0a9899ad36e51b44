// Package override implements the time-boxed emergency bypass.
//
// A guardian can open a window during which spending caps are skipped (the
// no-overdraft check never is). Expiry is detected lazily: IsActive checks
// the stored deadline and atomically clears a dead window, so no timer or
// background goroutine exists and concurrent callers always agree.
package override

import (
	"sync"
	"time"
)

// Window is one active override grant.
type Window struct {
	AccountID  string    `json:"accountId"`
	GuardianID string    `json:"guardianId"`
	EnabledAt  time.Time `json:"enabledAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// DefaultDuration is used when a guardian enables an override without an
// explicit duration.
const DefaultDuration = time.Hour

// Gate tracks override windows per account. Windows are in-memory state; a
// process restart closes them, which fails safe.
type Gate struct {
	mu      sync.Mutex
	windows map[string]*Window
}

// NewGate creates an override gate with no active windows.
func NewGate() *Gate {
	return &Gate{windows: make(map[string]*Window)}
}

// Enable opens (or replaces) the override window for an account.
func (g *Gate) Enable(accountID, guardianID string, duration time.Duration, now time.Time) *Window {
	if duration <= 0 {
		duration = DefaultDuration
	}
	w := &Window{
		AccountID:  accountID,
		GuardianID: guardianID,
		EnabledAt:  now,
		ExpiresAt:  now.Add(duration),
	}
	g.mu.Lock()
	g.windows[accountID] = w
	g.mu.Unlock()
	return w
}

// Disable closes the window. Returns the window that was open, or nil.
func (g *Gate) Disable(accountID string) *Window {
	g.mu.Lock()
	defer g.mu.Unlock()
	w := g.windows[accountID]
	delete(g.windows, accountID)
	return w
}

// IsActive reports whether an override is in force at the given instant.
// A window is active strictly before its deadline; at or after it, the
// window is cleared in the same critical section so a second caller finds
// nothing recorded.
func (g *Gate) IsActive(accountID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.windows[accountID]
	if !ok {
		return false
	}
	if !now.Before(w.ExpiresAt) {
		delete(g.windows, accountID)
		return false
	}
	return true
}

// Active returns the current window, or nil. Applies the same lazy expiry as
// IsActive.
func (g *Gate) Active(accountID string, now time.Time) *Window {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.windows[accountID]
	if !ok {
		return nil
	}
	if !now.Before(w.ExpiresAt) {
		delete(g.windows, accountID)
		return nil
	}
	cp := *w
	return &cp
}
