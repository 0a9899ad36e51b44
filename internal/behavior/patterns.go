package behavior

import (
	"fmt"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/hours"
	"github.com/meghshah/paisawatch/internal/idgen"
	"github.com/meghshah/paisawatch/internal/paisa"
)

// PatternType identifies a detected behavioral anomaly.
type PatternType string

const (
	SuddenSpendingIncrease      PatternType = "sudden_spending_increase"
	UnusualTimeActivity         PatternType = "unusual_time_activity"
	RapidPayeeAdditions         PatternType = "rapid_payee_additions"
	UnusualCategoryShift        PatternType = "unusual_category_shift"
	HighRiskMerchantFrequency   PatternType = "high_risk_merchant_frequency"
	VelocityAnomaly             PatternType = "velocity_anomaly"
	SocialEngineeringIndicators PatternType = "social_engineering_indicators"

	// Reserved types: no detector yet, kept for stored-pattern compatibility.
	DuplicateTransaction      PatternType = "duplicate_transaction"
	GeographicAnomaly         PatternType = "geographic_anomaly"
	AccountTakeoverIndicators PatternType = "account_takeover_indicators"
)

// MergeWindow is how close together two detections of the same type must be
// to merge into one pattern record.
const MergeWindow = 24 * time.Hour

// Pattern is one detected behavioral anomaly with its evidence.
type Pattern struct {
	ID            string            `json:"id"`
	Type          PatternType       `json:"type"`
	Severity      float64           `json:"severity"` // [0, 1]
	Occurrences   int               `json:"occurrences"`
	FirstDetected time.Time         `json:"firstDetected"`
	LastDetected  time.Time         `json:"lastDetected"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// highRiskCategories are merchant categories counted by the
// HighRiskMerchantFrequency detector.
var highRiskCategories = map[account.Category]bool{
	account.CategoryGaming:        true,
	account.CategoryEntertainment: true,
	account.CategoryOther:         true,
}

// Detect runs all detectors against the proposed transaction and returns the
// patterns that fired. The transaction's own timestamp anchors the trailing
// windows.
func Detect(snap *account.Snapshot, b *Baseline, tx *account.Transaction) []*Pattern {
	var out []*Pattern
	ref := tx.Timestamp

	if p := detectSpendingIncrease(b, tx); p != nil {
		out = append(out, p)
	}
	if p := detectUnusualTime(b, tx); p != nil {
		out = append(out, p)
	}
	if p := detectRapidPayees(snap, ref); p != nil {
		out = append(out, p)
	}
	if p := detectCategoryShift(snap, b, ref); p != nil {
		out = append(out, p)
	}
	if p := detectHighRiskFrequency(snap, tx, ref); p != nil {
		out = append(out, p)
	}
	if p := detectVelocity(snap, ref); p != nil {
		out = append(out, p)
	}
	if p := detectSocialEngineering(b, tx); p != nil {
		out = append(out, p)
	}
	return out
}

// Merge folds incoming into existing when they share a type and the incoming
// detection is within MergeWindow of the last one: severity becomes the
// average, occurrences sum, metadata unions with incoming values winning.
// Returns true when merged; false means incoming is a new record.
func Merge(existing, incoming *Pattern) bool {
	if existing.Type != incoming.Type {
		return false
	}
	if incoming.LastDetected.Sub(existing.LastDetected) > MergeWindow {
		return false
	}
	existing.Severity = (existing.Severity + incoming.Severity) / 2
	existing.Occurrences += incoming.Occurrences
	existing.LastDetected = incoming.LastDetected
	if existing.Metadata == nil {
		existing.Metadata = make(map[string]string)
	}
	for k, v := range incoming.Metadata {
		existing.Metadata[k] = v
	}
	return true
}

func newPattern(t PatternType, severity float64, at time.Time, meta map[string]string) *Pattern {
	if severity > 1 {
		severity = 1
	}
	return &Pattern{
		ID:            idgen.WithPrefix("pat_"),
		Type:          t,
		Severity:      severity,
		Occurrences:   1,
		FirstDetected: at,
		LastDetected:  at,
		Metadata:      meta,
	}
}

// amount > 3x the baseline average.
func detectSpendingIncrease(b *Baseline, tx *account.Transaction) *Pattern {
	ratio := paisa.Ratio(tx.Amount, b.AvgAmount)
	if ratio <= 3 {
		return nil
	}
	return newPattern(SuddenSpendingIncrease, ratio/5, tx.Timestamp, map[string]string{
		"amount":    paisa.Format(tx.Amount),
		"avgAmount": paisa.Format(b.AvgAmount),
	})
}

// Hour outside the inferred active ranges and in the fringe band.
func detectUnusualTime(b *Baseline, tx *account.Transaction) *Pattern {
	h := tx.Timestamp.Hour()
	if b.InActiveHours(h) {
		return nil
	}
	if h >= 6 && h <= 22 {
		return nil
	}
	severity := 0.5
	if hours.IsEarlyMorning(tx.Timestamp) {
		severity = 0.8
	}
	return newPattern(UnusualTimeActivity, severity, tx.Timestamp, map[string]string{
		"hour": fmt.Sprintf("%d", h),
	})
}

// More than 3 payees added in the trailing 24 hours.
func detectRapidPayees(snap *account.Snapshot, ref time.Time) *Pattern {
	n := snap.PayeesAddedSince(ref.Add(-24 * time.Hour))
	if n <= 3 {
		return nil
	}
	return newPattern(RapidPayeeAdditions, float64(n)/5, ref, map[string]string{
		"count": fmt.Sprintf("%d", n),
	})
}

// The historically dominant category fell below 2 occurrences this week.
func detectCategoryShift(snap *account.Snapshot, b *Baseline, ref time.Time) *Pattern {
	dominant, ok := b.DominantCategory()
	if !ok {
		return nil
	}
	count := 0
	for _, tx := range snap.CompletedDebitsSince(ref.Add(-7 * 24 * time.Hour)) {
		if tx.Category == dominant {
			count++
		}
	}
	if count >= 2 {
		return nil
	}
	return newPattern(UnusualCategoryShift, 0.6, ref, map[string]string{
		"dominantCategory": string(dominant),
		"recentCount":      fmt.Sprintf("%d", count),
	})
}

// More than 2 high-risk-category transactions in the trailing 24 hours.
func detectHighRiskFrequency(snap *account.Snapshot, tx *account.Transaction, ref time.Time) *Pattern {
	count := 0
	for _, prev := range snap.CompletedDebitsSince(ref.Add(-24 * time.Hour)) {
		if highRiskCategories[prev.Category] {
			count++
		}
	}
	if highRiskCategories[tx.Category] {
		count++
	}
	if count <= 2 {
		return nil
	}
	return newPattern(HighRiskMerchantFrequency, float64(count)/5, ref, map[string]string{
		"count": fmt.Sprintf("%d", count),
	})
}

// More than 5 transactions in the trailing hour, counting this one.
func detectVelocity(snap *account.Snapshot, ref time.Time) *Pattern {
	n := len(snap.CompletedDebitsSince(ref.Add(-time.Hour))) + 1
	if n <= 5 {
		return nil
	}
	return newPattern(VelocityAnomaly, float64(n)/10, ref, map[string]string{
		"count": fmt.Sprintf("%d", n),
	})
}

// Unfamiliar payee, outsized amount, and night hours all at once.
func detectSocialEngineering(b *Baseline, tx *account.Transaction) *Pattern {
	if tx.PayeeID == "" || b.TypicalPayees[tx.PayeeID] {
		return nil
	}
	if paisa.Ratio(tx.Amount, b.AvgAmount) <= 2 {
		return nil
	}
	if !hours.IsNight(tx.Timestamp) {
		return nil
	}
	return newPattern(SocialEngineeringIndicators, 0.9, tx.Timestamp, map[string]string{
		"payeeId": tx.PayeeID,
		"amount":  paisa.Format(tx.Amount),
	})
}
