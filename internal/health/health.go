// Package health aggregates readiness checks for guardd's subsystems.
//
// The server registers one checker per dependency it cannot run without
// (the account store, the background reviewer) and /healthz reports the
// roll-up: unhealthy as soon as any single subsystem is.
package health

import (
	"context"
	"sync"
)

// Status is the result of probing one subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// OK reports a passing subsystem.
func OK(name string) Status {
	return Status{Name: name, Healthy: true}
}

// Fail reports a failing subsystem with a human-readable reason.
func Fail(name, detail string) Status {
	return Status{Name: name, Healthy: false, Detail: detail}
}

// Checker inspects one subsystem. Checkers run on every /healthz request
// and should be cheap; anything expensive belongs behind its own cache.
type Checker func(ctx context.Context) Status

// Registry collects named checkers and runs them on demand. Registration
// order is preserved in the reported statuses.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry. A registry with no checkers reports
// healthy, which keeps the memory-store configuration green.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a checker under a subsystem name.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.entries = append(r.entries, entry{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every registered checker and reports the roll-up plus the
// individual results. One failing subsystem fails the whole check.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(entries))
	for i, e := range entries {
		statuses[i] = e.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}
