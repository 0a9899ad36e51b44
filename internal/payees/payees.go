// Package payees gates payee registration and first transfers.
//
// Two rules live here. Night-window throttling: during [21:00, 07:00) at
// most one payee may be added per rolling 12 hours. The first-transfer
// ladder: transfers up to the ₹1000 floor go through to new counterparties
// without parental friction; anything above it needs trust or approval. The
// floor applies per payee for its lifetime, until the payee is promoted to
// trusted.
package payees

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/alert"
	"github.com/meghshah/paisawatch/internal/hours"
	"github.com/meghshah/paisawatch/internal/paisa"
)

// ErrDuplicatePayee means the payee ID is already registered.
var ErrDuplicatePayee = errors.New("payee already registered")

// FirstTransferFloor is the amount (₹1000) a minor may send to any payee
// without trust or approval.
var FirstTransferFloor = paisa.MustParse("1000")

// nightAddWindow is the rolling window for the night-hours add throttle.
const nightAddWindow = 12 * time.Hour

// Gate evaluates payee operations and emits the guardian alerts they
// produce.
type Gate struct {
	alerts alert.Sink
}

// NewGate creates a payee gate emitting into the given sink.
func NewGate(alerts alert.Sink) *Gate {
	return &Gate{alerts: alerts}
}

// AddPayee registers a new payee on the snapshot. During night hours at most
// one payee may be added per rolling 12-hour window; the window boundary is
// exclusive, so an addition exactly 12 hours old no longer counts.
func (g *Gate) AddPayee(ctx context.Context, snap *account.Snapshot, p *account.Payee, now time.Time) account.Verdict {
	if snap.FindPayee(p.ID) != nil {
		return account.Rejected(ErrDuplicatePayee, fmt.Sprintf("payee %s already registered", p.ID))
	}

	if hours.IsNight(now) {
		cutoff := now.Add(-nightAddWindow)
		for _, existing := range snap.Payees {
			if existing.AddedAt.After(cutoff) {
				g.alerts.Emit(ctx, alert.New(snap.ID, alert.TypeNightActivity,
					fmt.Sprintf("blocked night-hours payee addition %q", p.Name)).
					WithMeta("payeeId", p.ID))
				return account.Rejected(account.ErrNightWindow,
					"only one payee may be added per 12 hours during night hours")
			}
		}
	}

	p.AddedAt = now
	snap.Payees = append(snap.Payees, p)
	g.alerts.Emit(ctx, alert.New(snap.ID, alert.TypePayeeAdded,
		fmt.Sprintf("payee %q added", p.Name)).WithMeta("payeeId", p.ID))
	return account.Pass()
}

// EvaluateTransfer applies the first-transfer ladder to a proposed payee
// transfer. It decides only trust and timing; caps and balance belong to the
// limit evaluator.
func (g *Gate) EvaluateTransfer(ctx context.Context, snap *account.Snapshot, tx *account.Transaction) account.Verdict {
	p := snap.FindPayee(tx.PayeeID)
	if p == nil {
		return g.evaluateUnknown(ctx, snap, tx)
	}

	// An established counterparty passes; caps still apply downstream.
	if snap.HasCompletedTransferTo(p.ID) {
		return account.Pass()
	}

	// First transfer to a registered payee.
	if withinFloor(tx.Amount) {
		return account.Pass()
	}
	if hours.IsNight(tx.Timestamp) {
		// Above the floor at night nothing bypasses approval, trusted
		// or not.
		return account.NeedsApproval(
			fmt.Sprintf("first transfer of %s to %q during night hours", paisa.Format(tx.Amount), p.Name))
	}
	if p.Trusted {
		return account.Pass()
	}
	return account.NeedsApproval(
		fmt.Sprintf("first transfer of %s to untrusted payee %q", paisa.Format(tx.Amount), p.Name))
}

// evaluateUnknown handles transfers to IDs absent from the payee list. The
// first one inside the floor passes with an informational alert; everything
// else waits for a guardian.
func (g *Gate) evaluateUnknown(ctx context.Context, snap *account.Snapshot, tx *account.Transaction) account.Verdict {
	attempt := snap.TransfersTo(tx.PayeeID) + 1

	if attempt == 1 && withinFloor(tx.Amount) {
		g.alerts.Emit(ctx, alert.New(snap.ID, alert.TypeUnknownPayee,
			fmt.Sprintf("first transfer of %s to unknown payee %s", paisa.Format(tx.Amount), tx.PayeeID)).
			WithTransaction(tx.ID))
		return account.Pass()
	}
	if attempt == 1 {
		return account.NeedsApproval(
			fmt.Sprintf("first transfer of %s to unknown payee %s exceeds the %s floor",
				paisa.Format(tx.Amount), tx.PayeeID, paisa.Format(FirstTransferFloor)))
	}
	return account.NeedsApproval(
		fmt.Sprintf("transfer #%d to unknown payee %s requires approval", attempt, tx.PayeeID))
}

func withinFloor(amount *big.Int) bool {
	return amount.Cmp(FirstTransferFloor) <= 0
}
