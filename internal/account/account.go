// Package account defines the canonical supervised-account snapshot.
//
// A Snapshot is an immutable value: evaluators Clone it, mutate the clone,
// and persist the whole new snapshot atomically. The Version field is the
// optimistic-concurrency token the storage layer checks on Save.
package account

import (
	"math/big"
	"time"
)

// Category classifies a transaction or merchant.
type Category string

const (
	CategoryGrocery       Category = "grocery"
	CategoryMedical       Category = "medical"
	CategoryTravel        Category = "travel"
	CategoryTransport     Category = "transport"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategoryGaming        Category = "gaming"
	CategoryFood          Category = "food"
	CategoryShopping      Category = "shopping"
	CategoryOther         Category = "other"
)

// PurposeTag labels parent-quarantined funds. Tagged money counts toward the
// total balance but is spendable only at matching merchant categories.
type PurposeTag string

const (
	TagMedical   PurposeTag = "medical"
	TagTravel    PurposeTag = "travel"
	TagEducation PurposeTag = "education"
	TagExamFees  PurposeTag = "exam_fees"
	TagEmergency PurposeTag = "emergency"
	TagMisc      PurposeTag = "misc"
)

// TxStatus is a transaction's lifecycle state. Transitions are one-way:
// Pending moves to exactly one terminal state and never reopens.
type TxStatus string

const (
	StatusPending          TxStatus = "pending"
	StatusCompleted        TxStatus = "completed"
	StatusFailed           TxStatus = "failed"
	StatusBlocked          TxStatus = "blocked"
	StatusRequiresApproval TxStatus = "requires_approval"
)

// TxKind separates money leaving the account from money arriving.
// Spend-window sums count only completed debits.
type TxKind string

const (
	KindDebit  TxKind = "debit"
	KindCredit TxKind = "credit"
)

// Transaction is a single ledger record. Immutable once created.
// An empty PayeeID means a plain withdrawal or deposit.
type Transaction struct {
	ID        string     `json:"id"`
	Amount    *big.Int   `json:"-"`
	Kind      TxKind     `json:"kind"`
	Category  Category   `json:"category"`
	PayeeID   string     `json:"payeeId,omitempty"`
	Purpose   PurposeTag `json:"purpose,omitempty"`
	Status    TxStatus   `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// Payee is a transfer counterparty registered on the account.
type Payee struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MaskedAccount string    `json:"maskedAccount"`
	Trusted       bool      `json:"trusted"`
	Category      Category  `json:"category,omitempty"`
	AddedAt       time.Time `json:"addedAt"`
}

// WithdrawalLimits caps cash withdrawals over rolling windows.
// A nil entry means the window is uncapped.
type WithdrawalLimits struct {
	Daily   *big.Int `json:"-"`
	Weekly  *big.Int `json:"-"`
	Monthly *big.Int `json:"-"`
}

// Limits is the parental control configuration. Immutable: a limits change
// replaces the whole value, never mutates it in place.
type Limits struct {
	PerTransactionMax        *big.Int              `json:"-"`
	MonthlyMax               *big.Int              `json:"-"`
	PerCategoryMax           map[Category]*big.Int `json:"-"`
	Withdrawal               WithdrawalLimits      `json:"withdrawal"`
	IncomingCreditMultiplier int                   `json:"incomingCreditMultiplier"`
}

// DefaultIncomingCreditMultiplier applies when Limits carries no explicit
// multiplier.
const DefaultIncomingCreditMultiplier = 2

// Multiplier returns the incoming-credit multiplier, defaulting to 2.
func (l Limits) Multiplier() int {
	if l.IncomingCreditMultiplier <= 0 {
		return DefaultIncomingCreditMultiplier
	}
	return l.IncomingCreditMultiplier
}

// Snapshot is the full state of one supervised account.
type Snapshot struct {
	ID           string                  `json:"id"`
	OwnerID      string                  `json:"ownerId"`
	Balance      *big.Int                `json:"-"`
	LockedFunds  map[PurposeTag]*big.Int `json:"-"`
	Limits       Limits                  `json:"limits"`
	Payees       []*Payee                `json:"payees"`
	Transactions []*Transaction          `json:"transactions"` // newest first
	CreatedAt    time.Time               `json:"createdAt"`
	Version      int64                   `json:"version"`
}

// New creates an empty snapshot for the given account and owner.
func New(id, ownerID string, now time.Time) *Snapshot {
	return &Snapshot{
		ID:          id,
		OwnerID:     ownerID,
		Balance:     new(big.Int),
		LockedFunds: make(map[PurposeTag]*big.Int),
		CreatedAt:   now,
	}
}

// LockedTotal returns the sum of all purpose-locked funds.
func (s *Snapshot) LockedTotal() *big.Int {
	total := new(big.Int)
	for _, v := range s.LockedFunds {
		total.Add(total, v)
	}
	return total
}

// AvailableBalance returns balance minus locked funds — the amount spendable
// outside purpose consumption.
func (s *Snapshot) AvailableBalance() *big.Int {
	return new(big.Int).Sub(s.Balance, s.LockedTotal())
}

// Clone returns a deep copy. Evaluators mutate the clone so a rejected
// operation never leaves a partially-mutated snapshot behind.
func (s *Snapshot) Clone() *Snapshot {
	cp := &Snapshot{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Balance:   new(big.Int).Set(s.Balance),
		Limits:    cloneLimits(s.Limits),
		CreatedAt: s.CreatedAt,
		Version:   s.Version,
	}
	cp.LockedFunds = make(map[PurposeTag]*big.Int, len(s.LockedFunds))
	for tag, v := range s.LockedFunds {
		cp.LockedFunds[tag] = new(big.Int).Set(v)
	}
	cp.Payees = make([]*Payee, len(s.Payees))
	for i, p := range s.Payees {
		pc := *p
		cp.Payees[i] = &pc
	}
	cp.Transactions = make([]*Transaction, len(s.Transactions))
	for i, tx := range s.Transactions {
		tc := *tx
		if tx.Amount != nil {
			tc.Amount = new(big.Int).Set(tx.Amount)
		}
		cp.Transactions[i] = &tc
	}
	return cp
}

func cloneLimits(l Limits) Limits {
	cp := Limits{IncomingCreditMultiplier: l.IncomingCreditMultiplier}
	if l.PerTransactionMax != nil {
		cp.PerTransactionMax = new(big.Int).Set(l.PerTransactionMax)
	}
	if l.MonthlyMax != nil {
		cp.MonthlyMax = new(big.Int).Set(l.MonthlyMax)
	}
	if l.PerCategoryMax != nil {
		cp.PerCategoryMax = make(map[Category]*big.Int, len(l.PerCategoryMax))
		for c, v := range l.PerCategoryMax {
			cp.PerCategoryMax[c] = new(big.Int).Set(v)
		}
	}
	if l.Withdrawal.Daily != nil {
		cp.Withdrawal.Daily = new(big.Int).Set(l.Withdrawal.Daily)
	}
	if l.Withdrawal.Weekly != nil {
		cp.Withdrawal.Weekly = new(big.Int).Set(l.Withdrawal.Weekly)
	}
	if l.Withdrawal.Monthly != nil {
		cp.Withdrawal.Monthly = new(big.Int).Set(l.Withdrawal.Monthly)
	}
	return cp
}

// Validate checks the snapshot invariants: non-negative balance, non-negative
// locked entries, and locked total not exceeding balance.
func (s *Snapshot) Validate() error {
	if s.Balance.Sign() < 0 {
		return ErrInvariantViolated
	}
	for _, v := range s.LockedFunds {
		if v.Sign() < 0 {
			return ErrInvariantViolated
		}
	}
	if s.AvailableBalance().Sign() < 0 {
		return ErrInvariantViolated
	}
	return nil
}

// FindPayee returns the payee with the given ID, or nil.
func (s *Snapshot) FindPayee(id string) *Payee {
	for _, p := range s.Payees {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AppendTransaction prepends tx to the ledger (newest first).
func (s *Snapshot) AppendTransaction(tx *Transaction) {
	s.Transactions = append([]*Transaction{tx}, s.Transactions...)
}

// sameMonth reports whether t falls in the given local calendar year+month.
func sameMonth(t time.Time, year int, month time.Month) bool {
	y, m, _ := t.Date()
	return y == year && m == month
}

// MonthlySpend sums completed debits in the given local calendar month.
func (s *Snapshot) MonthlySpend(year int, month time.Month) *big.Int {
	total := new(big.Int)
	for _, tx := range s.Transactions {
		if tx.Status == StatusCompleted && tx.Kind == KindDebit && sameMonth(tx.Timestamp, year, month) {
			total.Add(total, tx.Amount)
		}
	}
	return total
}

// MonthlyCategorySpend sums completed debits in one category for the given
// local calendar month.
func (s *Snapshot) MonthlyCategorySpend(cat Category, year int, month time.Month) *big.Int {
	total := new(big.Int)
	for _, tx := range s.Transactions {
		if tx.Status == StatusCompleted && tx.Kind == KindDebit && tx.Category == cat && sameMonth(tx.Timestamp, year, month) {
			total.Add(total, tx.Amount)
		}
	}
	return total
}

// WithdrawalsSince sums completed payee-less debits at or after t.
func (s *Snapshot) WithdrawalsSince(t time.Time) *big.Int {
	total := new(big.Int)
	for _, tx := range s.Transactions {
		if tx.Status == StatusCompleted && tx.Kind == KindDebit && tx.PayeeID == "" && !tx.Timestamp.Before(t) {
			total.Add(total, tx.Amount)
		}
	}
	return total
}

// HasCompletedTransferTo reports whether any completed transfer to the payee
// exists.
func (s *Snapshot) HasCompletedTransferTo(payeeID string) bool {
	for _, tx := range s.Transactions {
		if tx.PayeeID == payeeID && tx.Status == StatusCompleted {
			return true
		}
	}
	return false
}

// TransfersTo counts all recorded transfer attempts to the payee, whatever
// their status. Drives the unknown-payee repeat count.
func (s *Snapshot) TransfersTo(payeeID string) int {
	n := 0
	for _, tx := range s.Transactions {
		if tx.PayeeID == payeeID {
			n++
		}
	}
	return n
}

// CompletedDebitsSince returns completed debits at or after t, newest first.
func (s *Snapshot) CompletedDebitsSince(t time.Time) []*Transaction {
	var out []*Transaction
	for _, tx := range s.Transactions {
		if tx.Status == StatusCompleted && tx.Kind == KindDebit && !tx.Timestamp.Before(t) {
			out = append(out, tx)
		}
	}
	return out
}

// PayeesAddedSince counts payees whose AddedAt is at or after t.
func (s *Snapshot) PayeesAddedSince(t time.Time) int {
	n := 0
	for _, p := range s.Payees {
		if !p.AddedAt.Before(t) {
			n++
		}
	}
	return n
}
