// Package guardian orchestrates the supervision pipeline.
//
// Every proposed transaction runs through risk scoring first, then routes to
// the evaluator matching its shape: purpose-tagged spends to the allocator,
// payee transfers through the trust gate into the limit evaluator, plain
// spends and withdrawals straight to the limit evaluator. Mutations happen
// on a clone and persist atomically; a rejection leaves the stored snapshot
// untouched.
package guardian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/alert"
	"github.com/meghshah/paisawatch/internal/behavior"
	"github.com/meghshah/paisawatch/internal/idgen"
	"github.com/meghshah/paisawatch/internal/limits"
	"github.com/meghshah/paisawatch/internal/metrics"
	"github.com/meghshah/paisawatch/internal/override"
	"github.com/meghshah/paisawatch/internal/paisa"
	"github.com/meghshah/paisawatch/internal/payees"
	"github.com/meghshah/paisawatch/internal/purpose"
	"github.com/meghshah/paisawatch/internal/risk"
	"github.com/meghshah/paisawatch/internal/store"
	"github.com/meghshah/paisawatch/internal/syncutil"
	"github.com/meghshah/paisawatch/internal/traces"
)

// ErrTransactionNotFound is returned by ForceApprove for an unknown ID.
var ErrTransactionNotFound = errors.New("transaction not found")

// Result is the outcome of processing one transaction.
type Result struct {
	Verdict     account.Verdict
	Assessment  *risk.Assessment
	Transaction *account.Transaction
}

// Service is the decision core's entry point.
type Service struct {
	store    store.Store
	alerts   alert.Sink
	limits   *limits.Evaluator
	payees   *payees.Gate
	purpose  *purpose.Allocator
	scorer   *risk.Scorer
	override *override.Gate
	logger   *slog.Logger
	now      func() time.Time

	// accounts serializes same-account mutations in-process; the store's
	// version check still guards against other writers.
	accounts syncutil.ShardedMutex
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithScorer overrides the default risk scorer.
func WithScorer(sc *risk.Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

// New creates a guardian service on the given store and alert sink.
func New(st store.Store, alerts alert.Sink, opts ...Option) *Service {
	s := &Service{
		store:    st,
		alerts:   alerts,
		limits:   limits.NewEvaluator(),
		payees:   payees.NewGate(alerts),
		purpose:  purpose.NewAllocator(),
		scorer:   risk.NewScorer(),
		override: override.NewGate(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount registers a new supervised account.
func (s *Service) CreateAccount(ctx context.Context, snap *account.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateAccount(ctx, snap); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account created", "accountId", snap.ID, "ownerId", snap.OwnerID)
	return nil
}

// ProcessTransaction runs the full pipeline on a proposed debit: risk gate,
// routing, mutation, persistence, alerts. A store.ErrConflict means a
// concurrent writer won; the caller retries the whole operation with fresh
// state.
func (s *Service) ProcessTransaction(ctx context.Context, accountID string, tx *account.Transaction) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "guardian.ProcessTransaction", traces.AccountID(accountID))
	defer span.End()
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.prepare(tx, account.KindDebit)

	b, err := s.baseline(ctx, snap, tx.Timestamp)
	if err != nil {
		return nil, err
	}

	patterns := behavior.Detect(snap, b, tx)
	if err := s.recordPatterns(ctx, accountID, patterns); err != nil {
		s.logger.WarnContext(ctx, "pattern persistence failed", "accountId", accountID, "error", err)
	}

	assessment := s.scorer.ScoreTransaction(snap, b, tx, patterns)
	metrics.RiskScoreObserved(string(assessment.Level), assessment.Score)
	span.SetAttributes(traces.TransactionID(tx.ID), traces.Amount(paisa.Format(tx.Amount)),
		traces.RiskLevel(string(assessment.Level)))

	switch assessment.Level {
	case risk.LevelCritical:
		return s.holdTransaction(ctx, snap, tx, assessment, account.StatusBlocked)
	case risk.LevelHigh:
		return s.holdTransaction(ctx, snap, tx, assessment, account.StatusRequiresApproval)
	case risk.LevelMedium:
		s.alerts.Emit(ctx, alert.New(accountID, alert.TypeRiskFlagged,
			fmt.Sprintf("transaction of %s flagged for review (score %.3f)",
				paisa.Format(tx.Amount), assessment.Score)).
			WithTransaction(tx.ID).WithRisk(assessment).
			WithMeta("level", string(assessment.Level)))
	}

	return s.route(ctx, snap, tx, assessment, false)
}

// ForceApprove lets a guardian push a held transaction through. It re-enters
// at the routing step: the risk and trust gates are bypassed, the caps and
// the balance check are not. The target payee, if any, is promoted to
// trusted.
func (s *Service) ForceApprove(ctx context.Context, accountID, txID string) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "guardian.ForceApprove", traces.AccountID(accountID))
	defer span.End()
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var held *account.Transaction
	for _, tx := range snap.Transactions {
		if tx.ID == txID {
			held = tx
			break
		}
	}
	if held == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
	}
	if held.Status != account.StatusRequiresApproval && held.Status != account.StatusBlocked {
		return nil, fmt.Errorf("%w: %s is %s, not held", ErrTransactionNotFound, txID, held.Status)
	}

	// Statuses are one-way, so the approval runs as a fresh transaction
	// referencing the held one.
	retry := &account.Transaction{
		ID:        idgen.WithPrefix("txn_"),
		Amount:    new(big.Int).Set(held.Amount),
		Kind:      held.Kind,
		Category:  held.Category,
		PayeeID:   held.PayeeID,
		Purpose:   held.Purpose,
		Status:    account.StatusPending,
		Timestamp: s.now(),
	}

	res, err := s.route(ctx, snap, retry, nil, true)
	if err != nil {
		return res, err
	}
	span.SetAttributes(traces.Decision(res.Verdict.Decision.String()))
	if res.Verdict.Allowed() {
		s.logger.InfoContext(ctx, "transaction force-approved",
			"accountId", accountID, "heldId", txID, "newId", retry.ID)
	}
	return res, nil
}

// ProcessIncomingCredit applies a deposit. The amount in excess of the
// incoming-credit cap is quarantined under the misc tag and flagged to the
// guardian.
func (s *Service) ProcessIncomingCredit(ctx context.Context, accountID string, tx *account.Transaction) (*account.Snapshot, error) {
	ctx, span := traces.StartSpan(ctx, "guardian.ProcessIncomingCredit", traces.AccountID(accountID))
	defer span.End()
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.prepare(tx, account.KindCredit)

	cp := snap.Clone()
	lockedAmt, err := s.purpose.Credit(cp, tx)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, cp); err != nil {
		return nil, err
	}

	if lockedAmt.Sign() > 0 {
		s.alerts.Emit(ctx, alert.New(accountID, alert.TypeLargeCredit,
			fmt.Sprintf("credit of %s exceeds the incoming cap; %s locked pending review",
				paisa.Format(tx.Amount), paisa.Format(lockedAmt))).
			WithTransaction(tx.ID).WithMeta("locked", paisa.Format(lockedAmt)))
	}
	metrics.TransactionProcessed("credit", "allow")
	return cp, nil
}

// AddPayee registers a payee through the night-window gate.
func (s *Service) AddPayee(ctx context.Context, accountID string, p *account.Payee) (account.Verdict, error) {
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return account.Verdict{}, err
	}
	if p.ID == "" {
		p.ID = idgen.WithPrefix("pay_")
	}

	cp := snap.Clone()
	v := s.payees.AddPayee(ctx, cp, p, s.now())
	if !v.Allowed() {
		return v, nil
	}
	if err := s.save(ctx, cp); err != nil {
		return account.Verdict{}, err
	}
	return v, nil
}

// TagFunds quarantines an incoming amount under a purpose tag.
func (s *Service) TagFunds(ctx context.Context, accountID string, tag account.PurposeTag, amount *big.Int) error {
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	cp := snap.Clone()
	if err := s.purpose.Tag(cp, tag, amount); err != nil {
		return err
	}
	if err := s.save(ctx, cp); err != nil {
		return err
	}
	s.alerts.Emit(ctx, alert.New(accountID, alert.TypeFundsTagged,
		fmt.Sprintf("%s locked for %s", paisa.Format(amount), tag)).
		WithMeta("purpose", string(tag)))
	return nil
}

// ReleaseFunds frees locked money back into the spendable balance.
func (s *Service) ReleaseFunds(ctx context.Context, accountID string, tag account.PurposeTag, amount *big.Int) error {
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	cp := snap.Clone()
	if err := s.purpose.Release(cp, tag, amount); err != nil {
		return err
	}
	return s.save(ctx, cp)
}

// EnableOverride opens a time-boxed cap bypass for the account.
func (s *Service) EnableOverride(ctx context.Context, accountID, guardianID string, duration time.Duration) *override.Window {
	w := s.override.Enable(accountID, guardianID, duration, s.now())
	s.alerts.Emit(ctx, alert.New(accountID, alert.TypeOverrideEnabled,
		fmt.Sprintf("emergency override active until %s", w.ExpiresAt.Format(time.RFC3339))).
		WithMeta("guardianId", guardianID))
	metrics.OverrideToggled(true)
	return w
}

// DisableOverride closes the override window, if one is open.
func (s *Service) DisableOverride(ctx context.Context, accountID string) {
	if w := s.override.Disable(accountID); w != nil {
		s.alerts.Emit(ctx, alert.New(accountID, alert.TypeOverrideDisabled,
			"emergency override disabled").WithMeta("guardianId", w.GuardianID))
		metrics.OverrideToggled(false)
	}
}

// OverrideActive reports whether a cap bypass is in force right now.
func (s *Service) OverrideActive(accountID string) bool {
	return s.override.IsActive(accountID, s.now())
}

// AccountRisk scores the account's overall posture from its trailing week of
// patterns.
func (s *Service) AccountRisk(ctx context.Context, accountID string) (*risk.Assessment, error) {
	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	recent, err := s.store.RecentPatterns(ctx, accountID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}
	return s.scorer.ScoreAccount(snap, recent, now), nil
}

// RefreshBaseline recomputes the account's behavioral baseline from current
// history. Builds one lazily if none exists yet.
func (s *Service) RefreshBaseline(ctx context.Context, accountID string) (*behavior.Baseline, error) {
	defer s.accounts.Lock(accountID)()

	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b, err := s.store.LoadBaseline(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = behavior.Build(snap, now)
	} else {
		b.Update(snap, now)
	}
	if err := s.store.SaveBaseline(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ----------------------------------------------------------------------
// pipeline internals
// ----------------------------------------------------------------------

// prepare fills the generated fields a caller may omit.
func (s *Service) prepare(tx *account.Transaction, kind account.TxKind) {
	if tx.ID == "" {
		tx.ID = idgen.WithPrefix("txn_")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = s.now()
	}
	tx.Kind = kind
	tx.Status = account.StatusPending
}

// baseline returns the stored baseline, building and persisting one lazily
// from history on first use.
func (s *Service) baseline(ctx context.Context, snap *account.Snapshot, now time.Time) (*behavior.Baseline, error) {
	b, err := s.store.LoadBaseline(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	b = behavior.Build(snap, now)
	if err := s.store.SaveBaseline(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// recordPatterns persists detections, folding each into a stored pattern of
// the same type when one was last seen inside the merge window.
func (s *Service) recordPatterns(ctx context.Context, accountID string, detected []*behavior.Pattern) error {
	if len(detected) == 0 {
		return nil
	}
	stored, err := s.store.RecentPatterns(ctx, accountID, s.now().Add(-behavior.MergeWindow))
	if err != nil {
		return err
	}
	byType := make(map[behavior.PatternType]*behavior.Pattern, len(stored))
	for _, p := range stored {
		byType[p.Type] = p
	}
	for _, p := range detected {
		metrics.PatternDetected(string(p.Type))
		if existing, ok := byType[p.Type]; ok && behavior.Merge(existing, p) {
			if err := s.store.SavePattern(ctx, accountID, existing); err != nil {
				return err
			}
			continue
		}
		if err := s.store.SavePattern(ctx, accountID, p); err != nil {
			return err
		}
		byType[p.Type] = p
	}
	return nil
}

// holdTransaction records a risk-stopped transaction without touching
// balances and alerts the guardian.
func (s *Service) holdTransaction(ctx context.Context, snap *account.Snapshot, tx *account.Transaction, assessment *risk.Assessment, status account.TxStatus) (*Result, error) {
	cp := snap.Clone()
	tx.Status = status
	cp.AppendTransaction(tx)
	if err := s.save(ctx, cp); err != nil {
		return nil, err
	}

	typ := alert.TypeRiskBlocked
	verdict := account.Rejected(account.ErrApprovalRequired, assessment.Recommendation)
	if status == account.StatusRequiresApproval {
		typ = alert.TypeApprovalRequired
		verdict = account.NeedsApproval(assessment.Recommendation)
	}
	s.alerts.Emit(ctx, alert.New(snap.ID, typ,
		fmt.Sprintf("transaction of %s held: %s (score %.3f)",
			paisa.Format(tx.Amount), assessment.Recommendation, assessment.Score)).
		WithTransaction(tx.ID).WithRisk(assessment).NeedsAction().
		WithMeta("level", string(assessment.Level)))
	metrics.TransactionProcessed("debit", verdict.Decision.String())

	return &Result{Verdict: verdict, Assessment: assessment, Transaction: tx}, nil
}

// route sends the transaction to the evaluator matching its shape and
// persists the outcome. approved marks a guardian force-approval, which
// skips the trust gate.
func (s *Service) route(ctx context.Context, snap *account.Snapshot, tx *account.Transaction, assessment *risk.Assessment, approved bool) (*Result, error) {
	cp := snap.Clone()
	bypassCaps := s.override.IsActive(snap.ID, s.now())

	var v account.Verdict
	switch {
	case tx.Purpose != "":
		v = s.purpose.Consume(cp, tx)
		if v.Allowed() {
			s.alerts.Emit(ctx, alert.New(snap.ID, alert.TypePurposeSpend,
				fmt.Sprintf("%s spent from %s funds", paisa.Format(tx.Amount), tx.Purpose)).
				WithTransaction(tx.ID))
		}
	case tx.PayeeID != "" && !approved:
		v = s.payees.EvaluateTransfer(ctx, cp, tx)
		if v.Allowed() {
			v = s.evaluateAndCommit(cp, tx, bypassCaps)
		}
	default:
		v = s.evaluateAndCommit(cp, tx, bypassCaps)
	}

	switch v.Decision {
	case account.Allow:
		if approved {
			s.promotePayee(cp, tx.PayeeID)
		}
		if err := s.save(ctx, cp); err != nil {
			return nil, err
		}
	case account.RequireApproval:
		// Recorded without any balance movement so the guardian can act
		// on it later and repeat counts stay honest.
		held := snap.Clone()
		tx.Status = account.StatusRequiresApproval
		held.AppendTransaction(tx)
		if err := s.save(ctx, held); err != nil {
			return nil, err
		}
		s.alerts.Emit(ctx, alert.New(snap.ID, alert.TypeApprovalRequired, v.Reason).
			WithTransaction(tx.ID))
	case account.Reject:
		// The stored snapshot stays untouched.
		s.emitRejection(ctx, snap.ID, tx, v)
	}

	metrics.TransactionProcessed("debit", v.Decision.String())
	s.logger.InfoContext(ctx, "transaction processed",
		"accountId", snap.ID, "transactionId", tx.ID,
		"amount", paisa.Format(tx.Amount), "decision", v.Decision.String())

	return &Result{Verdict: v, Assessment: assessment, Transaction: tx}, nil
}

func (s *Service) evaluateAndCommit(cp *account.Snapshot, tx *account.Transaction, bypassCaps bool) account.Verdict {
	v := s.limits.Evaluate(cp, tx, bypassCaps)
	if v.Allowed() {
		limits.Commit(cp, tx)
	}
	return v
}

// promotePayee marks the transfer target trusted after an explicit guardian
// approval.
func (s *Service) promotePayee(snap *account.Snapshot, payeeID string) {
	if payeeID == "" {
		return
	}
	if p := snap.FindPayee(payeeID); p != nil {
		p.Trusted = true
	}
}

func (s *Service) emitRejection(ctx context.Context, accountID string, tx *account.Transaction, v account.Verdict) {
	typ := alert.TypeLimitExceeded
	if errors.Is(v.Err, account.ErrNightWindow) {
		typ = alert.TypeNightActivity
	}
	s.alerts.Emit(ctx, alert.New(accountID, typ, v.Reason).WithTransaction(tx.ID))
}

func (s *Service) save(ctx context.Context, snap *account.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.store.SaveAccount(ctx, snap)
}
