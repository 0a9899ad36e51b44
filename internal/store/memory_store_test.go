package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/behavior"
	"github.com/meghshah/paisawatch/internal/paisa"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

func seedSnapshot(t *testing.T, s Store) *account.Snapshot {
	t.Helper()
	snap := account.New("acc_1", "minor_1", testNow.AddDate(0, -1, 0))
	snap.Balance = paisa.MustParse("5000")
	require.NoError(t, s.CreateAccount(context.Background(), snap))
	return snap
}

func TestMemoryStoreAccountLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	snap := seedSnapshot(t, s)
	assert.EqualValues(t, 1, snap.Version)

	loaded, err := s.LoadAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "minor_1", loaded.OwnerID)
	assert.Equal(t, "5000.00", paisa.Format(loaded.Balance))

	// Mutating the loaded copy must not touch the stored snapshot.
	loaded.Balance.SetInt64(0)
	again, err := s.LoadAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "5000.00", paisa.Format(again.Balance))

	_, err = s.LoadAccount(ctx, "nope")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)

	ids, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc_1"}, ids)
}

func TestMemoryStoreSaveConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedSnapshot(t, s)

	a, err := s.LoadAccount(ctx, "acc_1")
	require.NoError(t, err)
	b, err := s.LoadAccount(ctx, "acc_1")
	require.NoError(t, err)

	a.Balance = paisa.MustParse("4000")
	require.NoError(t, s.SaveAccount(ctx, a))
	assert.EqualValues(t, 2, a.Version)

	// Second writer holds a stale version.
	b.Balance = paisa.MustParse("100")
	err = s.SaveAccount(ctx, b)
	assert.True(t, errors.Is(err, ErrConflict))

	// Reload and retry succeeds.
	fresh, err := s.LoadAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "4000.00", paisa.Format(fresh.Balance))
	fresh.Balance = paisa.MustParse("100")
	require.NoError(t, s.SaveAccount(ctx, fresh))
}

func TestMemoryStoreBaseline(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	b, err := s.LoadBaseline(ctx, "acc_1")
	require.NoError(t, err)
	assert.Nil(t, b, "absent baseline should be (nil, nil)")

	require.NoError(t, s.SaveBaseline(ctx, &behavior.Baseline{
		AccountID: "acc_1",
		AvgAmount: paisa.MustParse("300"),
		UpdatedAt: testNow,
	}))

	b, err = s.LoadBaseline(ctx, "acc_1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "300.00", paisa.Format(b.AvgAmount))
}

func TestMemoryStorePatterns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	old := &behavior.Pattern{ID: "pat_1", Type: behavior.VelocityAnomaly,
		Severity: 0.5, Occurrences: 1, LastDetected: testNow.Add(-48 * time.Hour)}
	fresh := &behavior.Pattern{ID: "pat_2", Type: behavior.UnusualTimeActivity,
		Severity: 0.8, Occurrences: 1, LastDetected: testNow}
	require.NoError(t, s.SavePattern(ctx, "acc_1", old))
	require.NoError(t, s.SavePattern(ctx, "acc_1", fresh))

	got, err := s.RecentPatterns(ctx, "acc_1", testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pat_2", got[0].ID)

	// Saving an existing ID updates in place.
	fresh.Occurrences = 3
	require.NoError(t, s.SavePattern(ctx, "acc_1", fresh))
	got, err = s.RecentPatterns(ctx, "acc_1", testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Occurrences)
}
