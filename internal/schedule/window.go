// Package schedule evaluates working-hours windows and runs the periodic
// auto-arm loop.
package schedule

import (
	"time"

	"camsentry/internal/config"
)

// Window is a time-of-day range in minutes since midnight. Start may
// exceed End, in which case the window wraps midnight.
type Window struct {
	Start int
	End   int
}

// WindowFor builds a Window from a user's configured working hours.
func WindowFor(h config.HoursConfig) (Window, error) {
	start, end, err := h.Minutes()
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// Within reports whether t falls inside the window. Both bounds are
// inclusive. A wrapping window (start > end) matches times at or after
// start, or at or before end.
func (w Window) Within(t time.Time) bool {
	now := t.Hour()*60 + t.Minute()
	if w.Start <= w.End {
		return w.Start <= now && now <= w.End
	}
	return now >= w.Start || now <= w.End
}
