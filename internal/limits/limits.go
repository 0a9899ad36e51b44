// Package limits enforces spending caps on proposed debits.
//
// Checks run in a fixed order and short-circuit on the first failure:
// per-transaction cap, then the category monthly cap, then the overall
// monthly cap, then withdrawal windows, then the balance check. A configured
// category cap is authoritative for its category; the overall monthly cap is
// not separately applied to that transaction.
//
// An active emergency override bypasses every cap but never the balance
// check. Overdraft is a hard regulatory invariant, not a preference.
package limits

import (
	"math/big"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
)

// Rolling windows for cash withdrawal caps.
const (
	withdrawalDayWindow   = 24 * time.Hour
	withdrawalWeekWindow  = 7 * 24 * time.Hour
	withdrawalMonthWindow = 30 * 24 * time.Hour
)

// Evaluator applies the cap checks. Stateless; safe for concurrent use.
type Evaluator struct{}

// NewEvaluator creates a limit evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs the ordered checks against a proposed debit. The
// transaction's timestamp anchors the calendar month and the rolling
// withdrawal windows. bypassCaps skips checks 1-4 (emergency override); the
// balance check always runs.
func (e *Evaluator) Evaluate(snap *account.Snapshot, tx *account.Transaction, bypassCaps bool) account.Verdict {
	if tx.Amount == nil || tx.Amount.Sign() <= 0 {
		return account.Rejected(account.ErrInvalidAmount, "amount must be positive")
	}

	if !bypassCaps {
		l := snap.Limits

		if l.PerTransactionMax != nil && tx.Amount.Cmp(l.PerTransactionMax) > 0 {
			return rejectLimit(account.LimitPerTransaction, l.PerTransactionMax, tx.Amount)
		}

		y, m, _ := tx.Timestamp.Date()
		if catCap, ok := l.PerCategoryMax[tx.Category]; ok {
			// Category cap configured: it is authoritative and the
			// overall monthly cap is skipped for this transaction.
			spent := snap.MonthlyCategorySpend(tx.Category, y, m)
			if projected(spent, tx.Amount).Cmp(catCap) > 0 {
				return rejectLimit(account.LimitCategory, catCap, tx.Amount)
			}
		} else if l.MonthlyMax != nil {
			spent := snap.MonthlySpend(y, m)
			if projected(spent, tx.Amount).Cmp(l.MonthlyMax) > 0 {
				return rejectLimit(account.LimitMonthly, l.MonthlyMax, tx.Amount)
			}
		}

		if tx.PayeeID == "" {
			if v := e.checkWithdrawals(snap, tx); !v.Allowed() {
				return v
			}
		}
	}

	if tx.Amount.Cmp(snap.AvailableBalance()) > 0 {
		return account.Rejected(account.ErrInsufficientBalance, "amount exceeds available balance")
	}
	return account.Pass()
}

// checkWithdrawals applies the rolling daily, weekly, and monthly cash caps
// to a payee-less debit.
func (e *Evaluator) checkWithdrawals(snap *account.Snapshot, tx *account.Transaction) account.Verdict {
	w := snap.Limits.Withdrawal
	windows := []struct {
		cap    *big.Int
		window time.Duration
	}{
		{w.Daily, withdrawalDayWindow},
		{w.Weekly, withdrawalWeekWindow},
		{w.Monthly, withdrawalMonthWindow},
	}
	for _, c := range windows {
		if c.cap == nil {
			continue
		}
		drawn := snap.WithdrawalsSince(tx.Timestamp.Add(-c.window))
		if projected(drawn, tx.Amount).Cmp(c.cap) > 0 {
			return rejectLimit(account.LimitWithdrawal, c.cap, tx.Amount)
		}
	}
	return account.Pass()
}

// Commit applies an allowed debit to the snapshot: balance drops by the
// amount and the transaction is recorded Completed. Callers evaluate first
// and commit on a clone so a rejection never leaves a partial mutation.
func Commit(snap *account.Snapshot, tx *account.Transaction) {
	snap.Balance.Sub(snap.Balance, tx.Amount)
	tx.Status = account.StatusCompleted
	snap.AppendTransaction(tx)
}

func projected(spent, amount *big.Int) *big.Int {
	return new(big.Int).Add(spent, amount)
}

func rejectLimit(kind account.LimitKind, limit, attempted *big.Int) account.Verdict {
	err := &account.LimitExceededError{
		Kind:      kind,
		Limit:     new(big.Int).Set(limit),
		Attempted: new(big.Int).Set(attempted),
	}
	return account.Rejected(err, err.Error())
}
