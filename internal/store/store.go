// Package store persists account snapshots, behavioral baselines, and
// detected patterns.
//
// Snapshots save atomically under optimistic concurrency: Save compares the
// caller's version against the stored one and fails with ErrConflict when a
// concurrent writer got there first. Callers reload and re-evaluate; they
// never merge.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/behavior"
)

// ErrConflict means the snapshot version changed since it was loaded.
var ErrConflict = errors.New("snapshot version conflict")

// Store is the persistence boundary for the decision core.
type Store interface {
	// CreateAccount inserts a new snapshot at version 1.
	CreateAccount(ctx context.Context, snap *account.Snapshot) error

	// LoadAccount returns a private copy of the snapshot.
	// Returns account.ErrAccountNotFound when absent.
	LoadAccount(ctx context.Context, id string) (*account.Snapshot, error)

	// SaveAccount persists snap if its Version still matches the stored
	// version, then bumps the stored version. Returns ErrConflict on a
	// version mismatch.
	SaveAccount(ctx context.Context, snap *account.Snapshot) error

	// ListAccounts returns all account IDs, for the periodic reviewer.
	ListAccounts(ctx context.Context) ([]string, error)

	// LoadBaseline returns the stored baseline, or (nil, nil) when none
	// has been computed yet.
	LoadBaseline(ctx context.Context, accountID string) (*behavior.Baseline, error)

	// SaveBaseline upserts the baseline.
	SaveBaseline(ctx context.Context, b *behavior.Baseline) error

	// SavePattern records a detected pattern, or updates it in place when
	// the ID already exists.
	SavePattern(ctx context.Context, accountID string, p *behavior.Pattern) error

	// RecentPatterns returns patterns last detected at or after the cutoff,
	// newest first.
	RecentPatterns(ctx context.Context, accountID string, since time.Time) ([]*behavior.Pattern, error)
}
