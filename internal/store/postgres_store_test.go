package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/behavior"
	"github.com/meghshah/paisawatch/internal/paisa"
	"github.com/meghshah/paisawatch/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	s := NewPostgresStore(db)
	ctx := context.Background()

	snap := account.New("acc_pg", "minor_pg", testNow.AddDate(0, -1, 0))
	snap.Balance = paisa.MustParse("7500")
	snap.LockedFunds[account.TagMedical] = paisa.MustParse("2000")
	snap.Limits.PerTransactionMax = paisa.MustParse("1000")
	snap.Payees = append(snap.Payees, &account.Payee{
		ID: "p1", Name: "Ravi", Trusted: true, AddedAt: testNow,
	})
	snap.AppendTransaction(&account.Transaction{
		ID: "txn_1", Amount: paisa.MustParse("250"), Kind: account.KindDebit,
		Category: account.CategoryFood, PayeeID: "p1",
		Status: account.StatusCompleted, Timestamp: testNow,
	})
	require.NoError(t, s.CreateAccount(ctx, snap))

	loaded, err := s.LoadAccount(ctx, "acc_pg")
	require.NoError(t, err)
	assert.Equal(t, "7500.00", paisa.Format(loaded.Balance))
	assert.Equal(t, "2000.00", paisa.Format(loaded.LockedFunds[account.TagMedical]))
	assert.Equal(t, "1000.00", paisa.Format(loaded.Limits.PerTransactionMax))
	require.Len(t, loaded.Transactions, 1)
	assert.Equal(t, "250.00", paisa.Format(loaded.Transactions[0].Amount))
	assert.EqualValues(t, 1, loaded.Version)

	loaded.Balance = paisa.MustParse("7000")
	require.NoError(t, s.SaveAccount(ctx, loaded))
	assert.EqualValues(t, 2, loaded.Version)

	stale := snap // still at version 1
	stale.Balance = paisa.MustParse("1")
	assert.ErrorIs(t, s.SaveAccount(ctx, stale), ErrConflict)

	_, err = s.LoadAccount(ctx, "missing")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestPostgresStoreBaselineAndPatterns(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	s := NewPostgresStore(db)
	ctx := context.Background()

	snap := account.New("acc_pg2", "minor_pg2", testNow.AddDate(0, -1, 0))
	snap.Balance = paisa.MustParse("1000")
	require.NoError(t, s.CreateAccount(ctx, snap))

	b, err := s.LoadBaseline(ctx, "acc_pg2")
	require.NoError(t, err)
	assert.Nil(t, b)

	base := &behavior.Baseline{
		AccountID:     "acc_pg2",
		AvgDailyCount: 1.5,
		AvgAmount:     paisa.MustParse("320"),
		CategoryFreq:  map[account.Category]int{account.CategoryFood: 4},
		ActiveHours:   []behavior.HourRange{{Start: 9, End: 21}},
		TypicalPayees: map[string]bool{"p1": true},
		UpdatedAt:     testNow,
	}
	require.NoError(t, s.SaveBaseline(ctx, base))
	base.AvgAmount = paisa.MustParse("350")
	require.NoError(t, s.SaveBaseline(ctx, base)) // upsert

	b, err = s.LoadBaseline(ctx, "acc_pg2")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "350.00", paisa.Format(b.AvgAmount))
	assert.Equal(t, 4, b.CategoryFreq[account.CategoryFood])

	pat := &behavior.Pattern{
		ID: "pat_pg", Type: behavior.SuddenSpendingIncrease,
		Severity: 0.8, Occurrences: 1,
		FirstDetected: testNow, LastDetected: testNow,
		Metadata: map[string]string{"amount": "5000.00"},
	}
	require.NoError(t, s.SavePattern(ctx, "acc_pg2", pat))
	pat.Occurrences = 2
	pat.LastDetected = testNow.Add(time.Hour)
	require.NoError(t, s.SavePattern(ctx, "acc_pg2", pat)) // upsert by ID

	got, err := s.RecentPatterns(ctx, "acc_pg2", testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Occurrences)
	assert.Equal(t, "5000.00", got[0].Metadata["amount"])
}
