package behavior

import (
	"testing"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/paisa"
)

func quietBaseline() *Baseline {
	return &Baseline{
		AccountID:     "acc_1",
		AvgAmount:     paisa.MustParse("250"),
		CategoryFreq:  map[account.Category]int{account.CategoryFood: 10},
		ActiveHours:   []HourRange{{Start: 9, End: 21}},
		TypicalPayees: map[string]bool{"p_known": true},
	}
}

func debitAt(amount string, payee string, cat account.Category, ts time.Time) *account.Transaction {
	return &account.Transaction{
		ID: "txn_x", Amount: paisa.MustParse(amount), Kind: account.KindDebit,
		Category: cat, PayeeID: payee, Status: account.StatusPending, Timestamp: ts,
	}
}

func patternTypes(ps []*Pattern) map[PatternType]*Pattern {
	m := make(map[PatternType]*Pattern, len(ps))
	for _, p := range ps {
		m[p.Type] = p
	}
	return m
}

func TestDetectQuietTransaction(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	tx := debitAt("200", "p_known", account.CategoryFood, testNow)

	if got := Detect(snap, quietBaseline(), tx); len(got) != 0 {
		t.Errorf("expected no patterns, got %v", got)
	}
}

func TestDetectSpendingIncrease(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	tx := debitAt("1000", "p_known", account.CategoryFood, testNow)

	got := patternTypes(Detect(snap, quietBaseline(), tx))
	p, ok := got[SuddenSpendingIncrease]
	if !ok {
		t.Fatal("expected sudden_spending_increase")
	}
	// ratio 4, severity 4/5
	if p.Severity != 0.8 {
		t.Errorf("severity = %f, want 0.8", p.Severity)
	}
}

func TestDetectSpendingIncreaseSeverityCaps(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	tx := debitAt("5000", "p_known", account.CategoryFood, testNow)

	got := patternTypes(Detect(snap, quietBaseline(), tx))
	if p := got[SuddenSpendingIncrease]; p == nil || p.Severity != 1.0 {
		t.Errorf("expected severity capped at 1.0, got %v", p)
	}
}

func TestDetectUnusualTime(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	b := quietBaseline()

	early := debitAt("100", "p_known", account.CategoryFood,
		time.Date(2026, 3, 14, 2, 0, 0, 0, time.Local))
	got := patternTypes(Detect(snap, b, early))
	if p := got[UnusualTimeActivity]; p == nil || p.Severity != 0.8 {
		t.Errorf("02:00 should fire at severity 0.8, got %v", p)
	}

	lateEvening := debitAt("100", "p_known", account.CategoryFood,
		time.Date(2026, 3, 14, 23, 0, 0, 0, time.Local))
	got = patternTypes(Detect(snap, b, lateEvening))
	if p := got[UnusualTimeActivity]; p == nil || p.Severity != 0.5 {
		t.Errorf("23:00 should fire at severity 0.5, got %v", p)
	}

	// 08:00 is outside active hours but inside the tolerated daytime band.
	morning := debitAt("100", "p_known", account.CategoryFood,
		time.Date(2026, 3, 14, 8, 0, 0, 0, time.Local))
	if got := patternTypes(Detect(snap, b, morning)); got[UnusualTimeActivity] != nil {
		t.Error("08:00 should not fire unusual_time_activity")
	}
}

func TestDetectRapidPayeeAdditions(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	for i := 0; i < 4; i++ {
		snap.Payees = append(snap.Payees, &account.Payee{
			ID: "p_new", AddedAt: testNow.Add(-time.Duration(i) * time.Hour),
		})
	}
	// Stale addition outside the window does not count.
	snap.Payees = append(snap.Payees, &account.Payee{ID: "p_old", AddedAt: testNow.Add(-48 * time.Hour)})

	tx := debitAt("100", "p_known", account.CategoryFood, testNow)
	got := patternTypes(Detect(snap, quietBaseline(), tx))
	p, ok := got[RapidPayeeAdditions]
	if !ok {
		t.Fatal("expected rapid_payee_additions")
	}
	if p.Severity != 0.8 {
		t.Errorf("severity = %f, want 0.8 (4/5)", p.Severity)
	}
}

func TestDetectCategoryShift(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	// Old food history establishes dominance, but none of it is recent.
	for i := 0; i < 5; i++ {
		addDebit(snap, "100", account.CategoryFood, "p_known", testNow.AddDate(0, 0, -20))
	}
	b := Build(snap, testNow)

	tx := debitAt("100", "p_known", account.CategoryGaming, testNow)
	got := patternTypes(Detect(snap, b, tx))
	if p := got[UnusualCategoryShift]; p == nil || p.Severity != 0.6 {
		t.Errorf("expected unusual_category_shift at 0.6, got %v", p)
	}

	// Two recent transactions in the dominant category quiet the detector.
	addDebit(snap, "100", account.CategoryFood, "p_known", testNow.Add(-time.Hour))
	addDebit(snap, "100", account.CategoryFood, "p_known", testNow.Add(-2*time.Hour))
	got = patternTypes(Detect(snap, b, tx))
	if got[UnusualCategoryShift] != nil {
		t.Error("recent dominant-category activity should suppress the shift pattern")
	}
}

func TestDetectHighRiskFrequency(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	addDebit(snap, "100", account.CategoryGaming, "p_known", testNow.Add(-time.Hour))
	addDebit(snap, "100", account.CategoryEntertainment, "p_known", testNow.Add(-2*time.Hour))

	// Third high-risk hit within 24h crosses the threshold.
	tx := debitAt("100", "p_known", account.CategoryGaming, testNow)
	got := patternTypes(Detect(snap, quietBaseline(), tx))
	p, ok := got[HighRiskMerchantFrequency]
	if !ok {
		t.Fatal("expected high_risk_merchant_frequency")
	}
	if p.Severity != 0.6 {
		t.Errorf("severity = %f, want 0.6 (3/5)", p.Severity)
	}

	safe := debitAt("100", "p_known", account.CategoryFood, testNow)
	if got := patternTypes(Detect(snap, quietBaseline(), safe)); got[HighRiskMerchantFrequency] != nil {
		t.Error("two prior high-risk hits alone should not fire")
	}
}

func TestDetectVelocity(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	for i := 0; i < 5; i++ {
		addDebit(snap, "50", account.CategoryFood, "p_known", testNow.Add(-time.Duration(i+1)*time.Minute))
	}

	tx := debitAt("50", "p_known", account.CategoryFood, testNow)
	got := patternTypes(Detect(snap, quietBaseline(), tx))
	p, ok := got[VelocityAnomaly]
	if !ok {
		t.Fatal("expected velocity_anomaly with 6 transactions in the hour")
	}
	if p.Severity != 0.6 {
		t.Errorf("severity = %f, want 0.6 (6/10)", p.Severity)
	}
}

func TestDetectSocialEngineering(t *testing.T) {
	snap := historySnapshot(testNow.AddDate(0, -2, 0))
	night := time.Date(2026, 3, 14, 2, 0, 0, 0, time.Local)

	tx := debitAt("5000", "p_stranger", account.CategoryOther, night)
	got := patternTypes(Detect(snap, quietBaseline(), tx))
	p, ok := got[SocialEngineeringIndicators]
	if !ok {
		t.Fatal("expected social_engineering_indicators")
	}
	if p.Severity != 0.9 {
		t.Errorf("severity = %f, want 0.9", p.Severity)
	}

	// Same transfer to a familiar payee does not fire.
	known := debitAt("5000", "p_known", account.CategoryOther, night)
	if got := patternTypes(Detect(snap, quietBaseline(), known)); got[SocialEngineeringIndicators] != nil {
		t.Error("familiar payee should not trigger social engineering")
	}

	// Same transfer at midday does not fire.
	noon := debitAt("5000", "p_stranger", account.CategoryOther, testNow)
	if got := patternTypes(Detect(snap, quietBaseline(), noon)); got[SocialEngineeringIndicators] != nil {
		t.Error("daytime transfer should not trigger social engineering")
	}
}

func TestMerge(t *testing.T) {
	existing := &Pattern{
		Type: VelocityAnomaly, Severity: 0.5, Occurrences: 2,
		FirstDetected: testNow.Add(-3 * time.Hour),
		LastDetected:  testNow.Add(-3 * time.Hour),
		Metadata:      map[string]string{"count": "6"},
	}
	incoming := &Pattern{
		Type: VelocityAnomaly, Severity: 0.7, Occurrences: 1,
		FirstDetected: testNow, LastDetected: testNow,
		Metadata: map[string]string{"count": "8"},
	}

	if !Merge(existing, incoming) {
		t.Fatal("expected merge within window")
	}
	if existing.Severity != 0.6 {
		t.Errorf("merged severity = %f, want 0.6", existing.Severity)
	}
	if existing.Occurrences != 3 {
		t.Errorf("merged occurrences = %d, want 3", existing.Occurrences)
	}
	if existing.Metadata["count"] != "8" {
		t.Error("incoming metadata should win")
	}
	if !existing.LastDetected.Equal(testNow) {
		t.Error("LastDetected should advance to incoming")
	}

	stale := &Pattern{Type: VelocityAnomaly, LastDetected: testNow.Add(-48 * time.Hour)}
	if Merge(stale, incoming) {
		t.Error("detections more than 24h apart must not merge")
	}
	other := &Pattern{Type: RapidPayeeAdditions, LastDetected: testNow}
	if Merge(other, incoming) {
		t.Error("different types must not merge")
	}
}
