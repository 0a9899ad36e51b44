// Package purpose manages parent-tagged locked funds.
//
// Tagged money is real balance, quarantined under a purpose tag until spent
// at a matching merchant category. The lock is a floor guarantee, not a
// ceiling: a spend larger than the locked amount drains the lock and pays
// the rest from unlocked balance.
package purpose

import (
	"fmt"
	"math/big"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/paisa"
)

// allowedCategories maps each purpose tag to the merchant categories that may
// consume it. An empty set means any category qualifies.
var allowedCategories = map[account.PurposeTag][]account.Category{
	account.TagMedical:   {account.CategoryMedical, account.CategoryGrocery},
	account.TagTravel:    {account.CategoryTravel, account.CategoryTransport},
	account.TagEducation: {account.CategoryEducation, account.CategoryOther},
	account.TagExamFees:  {account.CategoryEducation},
	account.TagEmergency: {},
}

// CategoryAllowed reports whether the merchant category may consume funds
// locked under the tag.
func CategoryAllowed(tag account.PurposeTag, cat account.Category) bool {
	allowed, ok := allowedCategories[tag]
	if !ok || len(allowed) == 0 {
		return true
	}
	for _, c := range allowed {
		if c == cat {
			return true
		}
	}
	return false
}

// Allocator tags and consumes purpose-locked funds.
type Allocator struct{}

// NewAllocator creates a purpose-fund allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Tag adds amount to both the balance and the purpose lock. Tagged money is
// an incoming deposit, quarantined the moment it lands.
func (a *Allocator) Tag(snap *account.Snapshot, tag account.PurposeTag, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: tag amount must be positive", account.ErrInvalidAmount)
	}
	snap.Balance.Add(snap.Balance, amount)
	locked, ok := snap.LockedFunds[tag]
	if !ok {
		locked = new(big.Int)
		snap.LockedFunds[tag] = locked
	}
	locked.Add(locked, amount)
	return nil
}

// Consume evaluates a purpose-tagged spend. The merchant category must match
// the tag's allowed set and some locked balance must exist for the tag. On
// success the lock shrinks by min(amount, locked), the full amount leaves the
// balance, and the transaction is recorded Completed.
func (a *Allocator) Consume(snap *account.Snapshot, tx *account.Transaction) account.Verdict {
	if tx.Amount == nil || tx.Amount.Sign() <= 0 {
		return account.Rejected(account.ErrInvalidAmount, "amount must be positive")
	}
	if tx.Purpose == "" {
		return account.Rejected(account.ErrPurposeMismatch, "transaction carries no purpose tag")
	}

	locked, ok := snap.LockedFunds[tx.Purpose]
	if !ok || locked.Sign() == 0 {
		return account.Rejected(account.ErrNoLockedFunds,
			fmt.Sprintf("no locked funds for purpose %s", tx.Purpose))
	}
	if !CategoryAllowed(tx.Purpose, tx.Category) {
		return account.Rejected(account.ErrPurposeMismatch,
			fmt.Sprintf("category %s cannot consume %s funds", tx.Category, tx.Purpose))
	}
	// Unlock up to the locked amount, then deduct the full amount.
	release := new(big.Int).Set(tx.Amount)
	if release.Cmp(locked) > 0 {
		release.Set(locked)
	}

	// Unlocking never authorizes overdraft: after the spend, the balance
	// must still cover every other lock.
	remaining := new(big.Int).Sub(snap.Balance, tx.Amount)
	stillLocked := new(big.Int).Sub(snap.LockedTotal(), release)
	if remaining.Cmp(stillLocked) < 0 {
		return account.Rejected(account.ErrInsufficientBalance, "amount exceeds spendable balance")
	}
	locked.Sub(locked, release)
	if locked.Sign() == 0 {
		delete(snap.LockedFunds, tx.Purpose)
	}
	snap.Balance.Sub(snap.Balance, tx.Amount)
	tx.Status = account.StatusCompleted
	snap.AppendTransaction(tx)
	return account.Pass()
}

// excessTag quarantines the over-cap part of a large incoming credit.
const excessTag = account.TagMisc

// CreditCap returns the incoming-credit ceiling:
// multiplier × (monthlyMax + withdrawalMonthly). A nil return means no cap
// applies (neither limit configured).
func CreditCap(l account.Limits) *big.Int {
	if l.MonthlyMax == nil && l.Withdrawal.Monthly == nil {
		return nil
	}
	base := new(big.Int)
	if l.MonthlyMax != nil {
		base.Add(base, l.MonthlyMax)
	}
	if l.Withdrawal.Monthly != nil {
		base.Add(base, l.Withdrawal.Monthly)
	}
	return base.Mul(base, big.NewInt(int64(l.Multiplier())))
}

// Credit applies an incoming credit. The balance grows by the full amount;
// whatever pushes the total balance beyond the credit cap is locked under
// the misc tag until a guardian releases it. Returns the amount locked
// (zero when the whole credit stays unlocked).
func (a *Allocator) Credit(snap *account.Snapshot, tx *account.Transaction) (*big.Int, error) {
	if tx.Amount == nil || tx.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive", account.ErrInvalidAmount)
	}

	snap.Balance.Add(snap.Balance, tx.Amount)
	tx.Status = account.StatusCompleted
	snap.AppendTransaction(tx)

	excess := new(big.Int)
	if c := CreditCap(snap.Limits); c != nil && snap.Balance.Cmp(c) > 0 {
		excess.Sub(snap.Balance, c)
		if excess.Cmp(tx.Amount) > 0 {
			// Never lock more than this credit brought in.
			excess.Set(tx.Amount)
		}
		locked, ok := snap.LockedFunds[excessTag]
		if !ok {
			locked = new(big.Int)
			snap.LockedFunds[excessTag] = locked
		}
		locked.Add(locked, excess)
	}
	return excess, nil
}

// Release moves locked funds back to the spendable balance. Used by a
// guardian to free quarantined credits or leftover purpose money.
func (a *Allocator) Release(snap *account.Snapshot, tag account.PurposeTag, amount *big.Int) error {
	locked, ok := snap.LockedFunds[tag]
	if !ok || locked.Sign() == 0 {
		return fmt.Errorf("%w: %s", account.ErrNoLockedFunds, tag)
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(locked) > 0 {
		return fmt.Errorf("%w: release of %s from %s lock holding %s",
			account.ErrInvalidAmount, paisa.Format(amount), tag, paisa.Format(locked))
	}
	locked.Sub(locked, amount)
	if locked.Sign() == 0 {
		delete(snap.LockedFunds, tag)
	}
	return nil
}
