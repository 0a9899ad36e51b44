// Package alert carries guardian notifications out of the decision core.
//
// The core emits alerts; delivery (push, SMS, in-app) belongs to external
// collaborators that implement Sink. LogSink and MemorySink cover the server
// process and tests.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meghshah/paisawatch/internal/idgen"
	"github.com/meghshah/paisawatch/internal/risk"
)

// Type identifies what happened.
type Type string

const (
	TypeLimitExceeded    Type = "limit_exceeded"
	TypeNightActivity    Type = "night_activity"
	TypeUnknownPayee     Type = "unknown_payee"
	TypePayeeAdded       Type = "payee_added"
	TypeApprovalRequired Type = "approval_required"
	TypeRiskBlocked      Type = "risk_blocked"
	TypeRiskFlagged      Type = "risk_flagged"
	TypeFundsTagged      Type = "funds_tagged"
	TypePurposeSpend     Type = "purpose_spend"
	TypeLargeCredit      Type = "large_credit"
	TypeOverrideEnabled  Type = "override_enabled"
	TypeOverrideDisabled Type = "override_disabled"
	TypeAccountReview    Type = "account_review"
)

// Alert is one guardian-facing notification. Risk carries the assessment
// that triggered the alert, when one exists; RequiresAction marks alerts the
// guardian must resolve (approve or dismiss) rather than just read.
type Alert struct {
	ID             string            `json:"id"`
	AccountID      string            `json:"accountId"`
	TransactionID  string            `json:"transactionId,omitempty"`
	Type           Type              `json:"type"`
	Message        string            `json:"message"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Risk           *risk.Assessment  `json:"risk,omitempty"`
	RequiresAction bool              `json:"requiresAction,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// New builds an alert with a fresh ID.
func New(accountID string, t Type, message string) *Alert {
	return &Alert{
		ID:        idgen.WithPrefix("alr_"),
		AccountID: accountID,
		Type:      t,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// WithTransaction attaches the triggering transaction.
func (a *Alert) WithTransaction(txID string) *Alert {
	a.TransactionID = txID
	return a
}

// WithRisk embeds the assessment behind the alert.
func (a *Alert) WithRisk(r *risk.Assessment) *Alert {
	a.Risk = r
	return a
}

// NeedsAction marks the alert as awaiting a guardian decision.
func (a *Alert) NeedsAction() *Alert {
	a.RequiresAction = true
	return a
}

// WithMeta attaches one metadata key.
func (a *Alert) WithMeta(key, value string) *Alert {
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
	return a
}

// Sink receives emitted alerts. Implementations must be safe for concurrent
// use; delivery failures are the sink's problem, not the decision core's.
type Sink interface {
	Emit(ctx context.Context, a *Alert)
}

// LogSink writes alerts to structured logs.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink backed by the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, a *Alert) {
	attrs := []any{
		"alertId", a.ID,
		"accountId", a.AccountID,
		"type", string(a.Type),
		"message", a.Message,
	}
	if a.TransactionID != "" {
		attrs = append(attrs, "transactionId", a.TransactionID)
	}
	if a.Risk != nil {
		attrs = append(attrs, "riskScore", a.Risk.Score, "riskLevel", string(a.Risk.Level))
	}
	if a.RequiresAction {
		attrs = append(attrs, "requiresAction", true)
	}
	for k, v := range a.Metadata {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "guardian alert", attrs...)
}

// MemorySink buffers alerts in memory, newest last.
type MemorySink struct {
	mu     sync.Mutex
	alerts []*Alert
}

// NewMemorySink creates an empty buffer sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(ctx context.Context, a *Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

// All returns a copy of the buffered alerts.
func (s *MemorySink) All() []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// ByType returns buffered alerts matching the type.
func (s *MemorySink) ByType(t Type) []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Alert
	for _, a := range s.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Reset drops all buffered alerts.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
}

// Fanout forwards each alert to every underlying sink in order.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, a *Alert) {
	for _, s := range f {
		s.Emit(ctx, a)
	}
}
