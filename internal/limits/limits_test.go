package limits

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/paisa"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

func limitedSnapshot() *account.Snapshot {
	snap := account.New("acc_1", "minor_1", testNow.AddDate(0, -2, 0))
	snap.Balance = paisa.MustParse("10000")
	snap.Limits = account.Limits{
		PerTransactionMax: paisa.MustParse("2000"),
		MonthlyMax:        paisa.MustParse("5000"),
		PerCategoryMax: map[account.Category]*big.Int{
			account.CategoryGaming: paisa.MustParse("1000"),
		},
	}
	return snap
}

func debit(amount string, cat account.Category, payee string) *account.Transaction {
	return &account.Transaction{
		ID: "txn_x", Amount: paisa.MustParse(amount), Kind: account.KindDebit,
		Category: cat, PayeeID: payee, Status: account.StatusPending, Timestamp: testNow,
	}
}

func kindOf(t *testing.T, v account.Verdict) account.LimitKind {
	t.Helper()
	var le *account.LimitExceededError
	if !errors.As(v.Err, &le) {
		t.Fatalf("expected LimitExceededError, got %v", v.Err)
	}
	return le.Kind
}

func TestPerTransactionCap(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()

	v := e.Evaluate(snap, debit("2500", account.CategoryFood, "p1"), false)
	if v.Allowed() {
		t.Fatal("2500 over a 2000 per-transaction cap should reject")
	}
	if kindOf(t, v) != account.LimitPerTransaction {
		t.Errorf("kind = %s, want per_transaction", kindOf(t, v))
	}

	if v := e.Evaluate(snap, debit("2000", account.CategoryFood, "p1"), false); !v.Allowed() {
		t.Errorf("exactly at the cap should pass: %s", v.Reason)
	}
}

func TestCategoryCapIsAuthoritative(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()
	// 800 already spent on gaming this month.
	snap.AppendTransaction(&account.Transaction{
		ID: "txn_old", Amount: paisa.MustParse("800"), Kind: account.KindDebit,
		Category: account.CategoryGaming, Status: account.StatusCompleted,
		Timestamp: testNow.Add(-48 * time.Hour),
	})

	v := e.Evaluate(snap, debit("300", account.CategoryGaming, "p1"), false)
	if v.Allowed() {
		t.Fatal("800 + 300 over a 1000 gaming cap should reject")
	}
	if kindOf(t, v) != account.LimitCategory {
		t.Errorf("kind = %s, want category", kindOf(t, v))
	}

	if v := e.Evaluate(snap, debit("200", account.CategoryGaming, "p1"), false); !v.Allowed() {
		t.Errorf("800 + 200 at the gaming cap should pass: %s", v.Reason)
	}
}

func TestMonthlyCapSkippedWhenCategoryCapApplies(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()
	snap.Limits.MonthlyMax = paisa.MustParse("100")

	// Gaming has its own cap, so the tiny monthly cap must not be consulted.
	if v := e.Evaluate(snap, debit("900", account.CategoryGaming, "p1"), false); !v.Allowed() {
		t.Errorf("category-capped transaction should skip monthly cap: %s", v.Reason)
	}

	// Food has no category cap, so the monthly cap applies.
	v := e.Evaluate(snap, debit("900", account.CategoryFood, "p1"), false)
	if v.Allowed() {
		t.Fatal("900 over a 100 monthly cap should reject")
	}
	if kindOf(t, v) != account.LimitMonthly {
		t.Errorf("kind = %s, want monthly", kindOf(t, v))
	}
}

func TestMonthlyCapCountsCompletedDebitsOnly(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()
	add := func(amount string, status account.TxStatus, kind account.TxKind, ts time.Time) {
		snap.AppendTransaction(&account.Transaction{
			ID: "txn", Amount: paisa.MustParse(amount), Kind: kind,
			Category: account.CategoryFood, Status: status, Timestamp: ts,
		})
	}
	add("4500", account.StatusCompleted, account.KindDebit, testNow.Add(-time.Hour))
	add("4000", account.StatusBlocked, account.KindDebit, testNow.Add(-time.Hour))
	add("4000", account.StatusCompleted, account.KindCredit, testNow.Add(-time.Hour))
	add("4000", account.StatusCompleted, account.KindDebit, testNow.AddDate(0, -1, 0))

	// 4500 counted; 500 more hits the 5000 monthly cap exactly.
	if v := e.Evaluate(snap, debit("500", account.CategoryFood, "p1"), false); !v.Allowed() {
		t.Errorf("4500 + 500 at the monthly cap should pass: %s", v.Reason)
	}
	if v := e.Evaluate(snap, debit("501", account.CategoryFood, "p1"), false); v.Allowed() {
		t.Error("4500 + 501 over the monthly cap should reject")
	}
}

func TestWithdrawalWindows(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()
	snap.Limits.Withdrawal = account.WithdrawalLimits{
		Daily:  paisa.MustParse("500"),
		Weekly: paisa.MustParse("1500"),
	}
	// 400 withdrawn 3 hours ago, 900 withdrawn 3 days ago.
	snap.AppendTransaction(&account.Transaction{
		ID: "w1", Amount: paisa.MustParse("400"), Kind: account.KindDebit,
		Status: account.StatusCompleted, Timestamp: testNow.Add(-3 * time.Hour),
	})
	snap.AppendTransaction(&account.Transaction{
		ID: "w2", Amount: paisa.MustParse("900"), Kind: account.KindDebit,
		Status: account.StatusCompleted, Timestamp: testNow.Add(-3 * 24 * time.Hour),
	})

	v := e.Evaluate(snap, debit("200", account.CategoryOther, ""), false)
	if v.Allowed() {
		t.Fatal("400 + 200 over the 500 daily cap should reject")
	}
	if kindOf(t, v) != account.LimitWithdrawal {
		t.Errorf("kind = %s, want withdrawal", kindOf(t, v))
	}

	if v := e.Evaluate(snap, debit("100", account.CategoryOther, ""), false); !v.Allowed() {
		t.Errorf("100 inside both windows should pass: %s", v.Reason)
	}

	v = e.Evaluate(snap, debit("300", account.CategoryOther, ""), false)
	// 400 + 300 breaches daily; daily is checked before weekly.
	if v.Allowed() {
		t.Fatal("daily window should reject before weekly is consulted")
	}

	// Payee transfers are not withdrawals.
	if v := e.Evaluate(snap, debit("200", account.CategoryOther, "p1"), false); !v.Allowed() {
		t.Errorf("transfer should not hit withdrawal caps: %s", v.Reason)
	}
}

func TestOverrideBypassesCapsNotBalance(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()
	snap.Limits.Withdrawal.Daily = paisa.MustParse("100")

	// Every cap is breached, but the override lets it through.
	if v := e.Evaluate(snap, debit("9000", account.CategoryOther, ""), true); !v.Allowed() {
		t.Errorf("override should bypass caps: %s", v.Reason)
	}

	// Balance is never bypassed.
	v := e.Evaluate(snap, debit("10001", account.CategoryOther, ""), true)
	if v.Allowed() {
		t.Fatal("override must not allow overdraft")
	}
	if !errors.Is(v.Err, account.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", v.Err)
	}
}

func TestBalanceExcludesLockedFunds(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()
	snap.LockedFunds[account.TagMedical] = paisa.MustParse("9000")

	v := e.Evaluate(snap, debit("1500", account.CategoryFood, "p1"), false)
	if v.Allowed() {
		t.Fatal("locked funds should not be spendable through the plain path")
	}
	if !errors.Is(v.Err, account.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", v.Err)
	}
}

func TestInvalidAmount(t *testing.T) {
	e := NewEvaluator()
	snap := limitedSnapshot()

	tx := debit("100", account.CategoryFood, "p1")
	tx.Amount.SetInt64(0)
	v := e.Evaluate(snap, tx, false)
	if v.Allowed() || !errors.Is(v.Err, account.ErrInvalidAmount) {
		t.Errorf("zero amount should reject with ErrInvalidAmount, got %v", v.Err)
	}
}

func TestCommit(t *testing.T) {
	snap := limitedSnapshot()
	tx := debit("1500", account.CategoryFood, "p1")

	Commit(snap, tx)

	if got := paisa.Format(snap.Balance); got != "8500.00" {
		t.Errorf("balance = %s, want 8500.00", got)
	}
	if snap.Transactions[0].Status != account.StatusCompleted {
		t.Errorf("status = %s, want completed", snap.Transactions[0].Status)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("committed snapshot failed validation: %v", err)
	}
}
