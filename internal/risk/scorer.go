package risk

import (
	"math"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/behavior"
	"github.com/meghshah/paisawatch/internal/hours"
	"github.com/meghshah/paisawatch/internal/idgen"
	"github.com/meghshah/paisawatch/internal/paisa"
)

// Factor contributions. Each factor adds its weight (or a fraction of it)
// directly to the score; the sum is clamped to [0, 1].
const (
	amountSevere   = 0.25 // > 5x baseline average
	amountElevated = 0.15 // > 3x
	amountMild     = 0.05 // > 2x

	timeLateNight = 0.20 // 22:00-06:00
	timeBaseline  = 0.05

	unknownPayeeWeight = 0.15 // payee outside the baseline's typical set

	velocityBurst    = 0.20 // > 3 transactions in the trailing hour
	velocityBaseline = 0.05

	patternWeight = 0.3 // multiplied by each pattern's severity

	maturityWeight = 0.10 // account younger than 30 days

	// Account-level factors.
	patternPressureWeight = 0.4
	payeeTrustWeight      = 0.15
	categorySpreadWeight  = 0.10
	lockedShareWeight     = 0.15
)

// Scorer computes risk assessments. Stateless apart from its thresholds; the
// caller supplies the snapshot, baseline, and detected patterns.
type Scorer struct {
	criticalThreshold float64
	highThreshold     float64
	mediumThreshold   float64
}

// NewScorer creates a scorer with the default level thresholds.
func NewScorer() *Scorer {
	return &Scorer{
		criticalThreshold: DefaultCriticalThreshold,
		highThreshold:     DefaultHighThreshold,
		mediumThreshold:   DefaultMediumThreshold,
	}
}

// WithThresholds overrides the level boundaries.
func (s *Scorer) WithThresholds(critical, high, medium float64) *Scorer {
	s.criticalThreshold = critical
	s.highThreshold = high
	s.mediumThreshold = medium
	return s
}

// ScoreTransaction evaluates a proposed transaction. Pure in-memory
// computation with no side effects; scoring the same inputs twice yields the
// same score.
func (s *Scorer) ScoreTransaction(snap *account.Snapshot, b *behavior.Baseline, tx *account.Transaction, patterns []*behavior.Pattern) *Assessment {
	factors := make(map[string]float64)

	ratio := paisa.Ratio(tx.Amount, b.AvgAmount)
	switch {
	case ratio > 5:
		factors["amount_anomaly"] = amountSevere
	case ratio > 3:
		factors["amount_anomaly"] = amountElevated
	case ratio > 2:
		factors["amount_anomaly"] = amountMild
	default:
		factors["amount_anomaly"] = 0
	}

	if hours.IsLateNight(tx.Timestamp) {
		factors["time_risk"] = timeLateNight
	} else {
		factors["time_risk"] = timeBaseline
	}

	factors["unknown_payee"] = 0
	if tx.PayeeID != "" && !b.TypicalPayees[tx.PayeeID] {
		factors["unknown_payee"] = unknownPayeeWeight
	}

	recent := len(snap.CompletedDebitsSince(tx.Timestamp.Add(-time.Hour))) + 1
	if recent > 3 {
		factors["velocity"] = velocityBurst
	} else {
		factors["velocity"] = velocityBaseline
	}

	// Reserved for the auth collaborator; always zero until failed-PIN
	// counts are wired through.
	factors["auth_failures"] = 0

	for _, p := range patterns {
		factors["pattern:"+string(p.Type)] = p.Severity * patternWeight
	}

	if tx.Timestamp.Sub(snap.CreatedAt) < 30*24*time.Hour {
		factors["account_maturity"] = maturityWeight
	} else {
		factors["account_maturity"] = 0
	}

	return s.assess(snap.ID, tx.ID, factors, patterns, tx.Timestamp)
}

// ScoreAccount evaluates overall account posture from recent history rather
// than a single transaction. Used by the periodic reviewer.
func (s *Scorer) ScoreAccount(snap *account.Snapshot, recent []*behavior.Pattern, now time.Time) *Assessment {
	factors := make(map[string]float64)

	weekAgo := now.Add(-7 * 24 * time.Hour)
	sum, n := 0.0, 0
	for _, p := range recent {
		if p.LastDetected.After(weekAgo) {
			sum += p.Severity
			n++
		}
	}
	factors["pattern_pressure"] = 0
	if n > 0 {
		factors["pattern_pressure"] = (sum / float64(n)) * patternPressureWeight
	}

	factors["payee_trust"] = 0
	if len(snap.Payees) > 0 {
		trusted := 0
		for _, p := range snap.Payees {
			if p.Trusted {
				trusted++
			}
		}
		ratio := float64(trusted) / float64(len(snap.Payees))
		factors["payee_trust"] = (1 - ratio) * payeeTrustWeight
	}

	cats := make(map[account.Category]bool)
	for _, tx := range snap.CompletedDebitsSince(now.Add(-30 * 24 * time.Hour)) {
		cats[tx.Category] = true
	}
	factors["category_spread"] = 0
	if len(cats) > 5 {
		factors["category_spread"] = categorySpreadWeight
	}

	factors["locked_share"] = 0
	if snap.Balance.Sign() > 0 {
		share := paisa.Ratio(snap.LockedTotal(), snap.Balance)
		if share > 0.3 {
			factors["locked_share"] = lockedShareWeight
		}
	}

	return s.assess(snap.ID, "", factors, nil, now)
}

func (s *Scorer) assess(accountID, txID string, factors map[string]float64, patterns []*behavior.Pattern, at time.Time) *Assessment {
	score := 0.0
	for _, v := range factors {
		score += v
	}
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	level, rec := s.levelFor(score)
	return &Assessment{
		ID:             idgen.WithPrefix("risk_"),
		AccountID:      accountID,
		TransactionID:  txID,
		Score:          math.Round(score*1000) / 1000,
		Factors:        factors,
		Level:          level,
		Patterns:       patterns,
		Recommendation: rec,
		EvaluatedAt:    at,
	}
}

func (s *Scorer) levelFor(score float64) (Level, string) {
	switch {
	case score >= s.criticalThreshold:
		return LevelCritical, RecommendBlock
	case score >= s.highThreshold:
		return LevelHigh, RecommendApprove
	case score >= s.mediumThreshold:
		return LevelMedium, RecommendFlag
	default:
		return LevelLow, RecommendAllow
	}
}
