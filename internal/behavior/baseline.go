// Package behavior learns per-account spending profiles and extracts anomaly
// patterns from incoming transactions.
//
// A Baseline is built lazily from the historical ledger on first analysis and
// refreshed on demand (caller-triggered, never automatic). Detection runs the
// independent pattern detectors against the baseline; any subset may fire.
package behavior

import (
	"math/big"
	"sort"
	"time"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/paisa"
)

// DefaultAvgAmount seeds the baseline when no history exists (₹500).
var DefaultAvgAmount = paisa.MustParse("500")

// emaOldWeight / emaNewWeight control the average-amount moving average:
// 0.7 old, 0.3 new, computed in integer tenths to stay exact.
const (
	emaOldWeight = 7
	emaNewWeight = 3
)

// HourRange is a half-open [Start, End) range of wall-clock hours.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Baseline is the rolling statistical profile of "normal" behavior for one
// account.
type Baseline struct {
	AccountID     string                   `json:"accountId"`
	AvgDailyCount float64                  `json:"avgDailyCount"`
	AvgAmount     *big.Int                 `json:"-"`
	CategoryFreq  map[account.Category]int `json:"categoryFreq"`
	ActiveHours   []HourRange              `json:"activeHours"`
	TypicalPayees map[string]bool          `json:"typicalPayees"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// Build constructs a baseline from the account's completed debit history.
func Build(snap *account.Snapshot, now time.Time) *Baseline {
	b := &Baseline{
		AccountID:     snap.ID,
		CategoryFreq:  make(map[account.Category]int),
		TypicalPayees: make(map[string]bool),
		UpdatedAt:     now,
	}

	var history []*account.Transaction
	for _, tx := range snap.Transactions {
		if tx.Status == account.StatusCompleted && tx.Kind == account.KindDebit {
			history = append(history, tx)
		}
	}

	b.AvgAmount = meanAmount(history)

	days := int(now.Sub(snap.CreatedAt).Hours() / 24)
	if days < 1 {
		days = 1
	}
	b.AvgDailyCount = float64(len(history)) / float64(days)

	for _, tx := range history {
		b.CategoryFreq[tx.Category]++
		if tx.PayeeID != "" {
			b.TypicalPayees[tx.PayeeID] = true
		}
	}

	b.ActiveHours = inferActiveHours(history)
	return b
}

// Update refreshes the baseline from current history. The average amount
// moves by exponential moving average (0.7 old / 0.3 new); the remaining
// fields are recomputed outright.
func (b *Baseline) Update(snap *account.Snapshot, now time.Time) {
	fresh := Build(snap, now)

	old := new(big.Int).Mul(b.AvgAmount, big.NewInt(emaOldWeight))
	recent := new(big.Int).Mul(fresh.AvgAmount, big.NewInt(emaNewWeight))
	b.AvgAmount = old.Add(old, recent).Div(old, big.NewInt(emaOldWeight+emaNewWeight))

	b.AvgDailyCount = fresh.AvgDailyCount
	b.CategoryFreq = fresh.CategoryFreq
	b.TypicalPayees = fresh.TypicalPayees
	b.ActiveHours = fresh.ActiveHours
	b.UpdatedAt = now
}

// InActiveHours reports whether the hour falls inside any inferred range.
func (b *Baseline) InActiveHours(hour int) bool {
	for _, r := range b.ActiveHours {
		if hour >= r.Start && hour < r.End {
			return true
		}
	}
	return false
}

// DominantCategory returns the most frequent historical category. The second
// return is false when history is too thin to call anything dominant.
func (b *Baseline) DominantCategory() (account.Category, bool) {
	var best account.Category
	bestN := 0
	for cat, n := range b.CategoryFreq {
		if n > bestN || (n == bestN && cat < best) {
			best, bestN = cat, n
		}
	}
	// Below 3 historical occurrences a "dominant" category is noise.
	if bestN < 3 {
		return "", false
	}
	return best, true
}

// meanAmount returns the mean of the transactions' amounts, or the default
// when there is no history.
func meanAmount(history []*account.Transaction) *big.Int {
	if len(history) == 0 {
		return new(big.Int).Set(DefaultAvgAmount)
	}
	sum := new(big.Int)
	for _, tx := range history {
		sum.Add(sum, tx.Amount)
	}
	return sum.Div(sum, big.NewInt(int64(len(history))))
}

// inferActiveHours finds contiguous runs of hours whose transaction count
// exceeds the 24-hour mean and merges them into ranges. Defaults to [9, 21)
// when there is no history.
func inferActiveHours(history []*account.Transaction) []HourRange {
	if len(history) == 0 {
		return []HourRange{{Start: 9, End: 21}}
	}

	var histogram [24]int
	for _, tx := range history {
		histogram[tx.Timestamp.Hour()]++
	}
	threshold := float64(len(history)) / 24.0

	var active []int
	for h := 0; h < 24; h++ {
		if float64(histogram[h]) > threshold {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return []HourRange{{Start: 9, End: 21}}
	}
	sort.Ints(active)

	var ranges []HourRange
	start, prev := active[0], active[0]
	for _, h := range active[1:] {
		if h == prev+1 {
			prev = h
			continue
		}
		ranges = append(ranges, HourRange{Start: start, End: prev + 1})
		start, prev = h, h
	}
	ranges = append(ranges, HourRange{Start: start, End: prev + 1})
	return ranges
}
