// Package hours classifies wall-clock time into the supervision windows.
//
// Night hours are [21:00, 07:00) in the account's local time; stricter payee
// and transfer rules apply during that window. Callers inject "now" so the
// classification is testable.
package hours

import "time"

const (
	// NightStart is the hour (inclusive) at which night rules begin.
	NightStart = 21
	// NightEnd is the hour (exclusive) at which night rules end.
	NightEnd = 7
)

// IsNight reports whether t falls in the night window [21:00, 07:00).
func IsNight(t time.Time) bool {
	h := t.Hour()
	return h >= NightStart || h < NightEnd
}

// IsLateNight reports whether t falls in [22:00, 24:00) or [00:00, 06:00),
// the elevated-weight window for the risk time factor.
func IsLateNight(t time.Time) bool {
	h := t.Hour()
	return h >= 22 || h < 6
}

// IsEarlyMorning reports whether t falls in [00:00, 05:00), the highest
// severity band for unusual-time activity.
func IsEarlyMorning(t time.Time) bool {
	h := t.Hour()
	return h >= 0 && h < 5
}
