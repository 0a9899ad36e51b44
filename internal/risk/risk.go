// Package risk turns behavioral signals into a composite risk score.
//
// Every proposed transaction is evaluated against weighted factors: amount
// anomaly, time of day, payee familiarity, velocity, and any behavioral
// patterns detected alongside it. Scores range from 0.0 (safe) to 1.0 and map
// onto four levels that drive the supervision verdict.
package risk

import (
	"time"

	"github.com/meghshah/paisawatch/internal/behavior"
)

// Level buckets a score for routing decisions.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Default level thresholds. A score at or above a threshold lands in that
// level; below all three is LevelLow.
const (
	DefaultCriticalThreshold = 0.85
	DefaultHighThreshold     = 0.70
	DefaultMediumThreshold   = 0.40
)

// Recommended handling per level, attached verbatim to assessments so alert
// consumers never re-derive routing from the raw score.
const (
	RecommendBlock   = "block transaction and notify guardian immediately"
	RecommendApprove = "hold transaction for guardian approval"
	RecommendFlag    = "allow transaction and flag for guardian review"
	RecommendAllow   = "allow transaction"
)

// Assessment is the result of scoring one transaction or one account.
// TransactionID is empty for account-level assessments.
type Assessment struct {
	ID             string              `json:"id"`
	AccountID      string              `json:"accountId"`
	TransactionID  string              `json:"transactionId,omitempty"`
	Score          float64             `json:"score"`
	Factors        map[string]float64  `json:"factors"`
	Level          Level               `json:"level"`
	Patterns       []*behavior.Pattern `json:"patterns,omitempty"`
	Recommendation string              `json:"recommendation"`
	EvaluatedAt    time.Time           `json:"evaluatedAt"`
}
