package account

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/meghshah/paisawatch/internal/paisa"
)

// Domain outcomes. Every evaluator returns either a successful state
// transition or exactly one of these, wrapped with a human-readable message.
// They are routine business results, not exceptional control flow.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrLimitExceeded       = errors.New("limit exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNightWindow         = errors.New("night window restriction")
	ErrApprovalRequired    = errors.New("parental approval required")
	ErrPurposeMismatch     = errors.New("purpose does not match merchant category")
	ErrNoLockedFunds       = errors.New("no locked funds for purpose")
	ErrInvariantViolated   = errors.New("account invariant violated")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// LimitKind identifies which cap a transaction exceeded.
type LimitKind string

const (
	LimitPerTransaction LimitKind = "per_transaction"
	LimitCategory       LimitKind = "category"
	LimitMonthly        LimitKind = "monthly"
	LimitWithdrawal     LimitKind = "withdrawal"
)

// LimitExceededError carries which limit failed and by how much.
// errors.Is(err, ErrLimitExceeded) matches it.
type LimitExceededError struct {
	Kind      LimitKind
	Limit     *big.Int
	Attempted *big.Int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: attempted %s against limit %s",
		e.Kind, paisa.Format(e.Attempted), paisa.Format(e.Limit))
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }
