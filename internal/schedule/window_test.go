// Package schedule tests cover window arithmetic and the auto-arm loop.
package schedule

import (
	"testing"
	"time"

	"camsentry/internal/config"
)

func at(hh, mm int) time.Time {
	return time.Date(2026, 6, 15, hh, mm, 0, 0, time.UTC)
}

// TestWindowWithin covers plain windows, midnight wrap, and inclusive
// boundaries.
func TestWindowWithin(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		now        time.Time
		want       bool
	}{
		{"inside plain window", "09:00", "17:00", at(12, 0), true},
		{"before plain window", "09:00", "17:00", at(8, 59), false},
		{"after plain window", "09:00", "17:00", at(17, 1), false},
		{"start boundary inclusive", "09:00", "17:00", at(9, 0), true},
		{"end boundary inclusive", "09:00", "17:00", at(17, 0), true},
		{"wrap window at night", "22:00", "06:00", at(23, 0), true},
		{"wrap window after midnight", "22:00", "06:00", at(3, 0), true},
		{"wrap window midday", "22:00", "06:00", at(12, 0), false},
		{"wrap start boundary", "22:00", "06:00", at(22, 0), true},
		{"wrap end boundary", "22:00", "06:00", at(6, 0), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := WindowFor(config.HoursConfig{Start: tc.start, End: tc.end})
			if err != nil {
				t.Fatalf("WindowFor: %v", err)
			}
			if got := w.Within(tc.now); got != tc.want {
				t.Fatalf("Within(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}
