// Package paisa provides shared INR parsing and formatting utilities.
//
// Amounts use 2 decimal places. All arithmetic is done on big.Int values in
// the smallest unit (1 rupee = 100 paise), so balances never accumulate
// floating-point error.
package paisa

import (
	"math/big"
	"strings"
)

const Decimals = 2

// Parse converts a decimal string (e.g. "1000.50") to its smallest-unit
// big.Int representation (100050). Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 2 decimal places
func Parse(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") {
		return nil, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}

	// Pad or trim to 2 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	return result, ok
}

// MustParse parses a decimal string, panicking on invalid input. Intended for
// package-level constants and test fixtures.
func MustParse(s string) *big.Int {
	result, ok := Parse(s)
	if !ok {
		panic("paisa: invalid amount: " + s)
	}
	return result
}

// FromRupees converts a whole-rupee count to paise.
func FromRupees(r int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(r), big.NewInt(100))
}

// Format converts a smallest-unit big.Int to a human-readable decimal string
// with exactly 2 decimal places (e.g. "1000.50").
func Format(amount *big.Int) string {
	if amount == nil {
		return "0.00"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	s := abs.String()
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	decimal := len(s) - Decimals
	result := s[:decimal] + "." + s[decimal:]
	if neg {
		result = "-" + result
	}
	return result
}

// Ratio returns a/b as float64, or 0 when b is zero. Used for anomaly ratios
// where behavioral thresholds tolerate float precision (not money movement).
func Ratio(a, b *big.Int) float64 {
	if b == nil || b.Sign() == 0 {
		return 0
	}
	af, _ := new(big.Float).SetInt(a).Float64()
	bf, _ := new(big.Float).SetInt(b).Float64()
	return af / bf
}
