package schedule

import (
	"context"
	"log/slog"
	"time"

	"camsentry/internal/armed"
	"camsentry/internal/config"
)

// Policy decides a user's scheduled armed state. Evaluate returns the
// desired state and whether it applies to this user at all; apply=false
// leaves the stored state untouched.
type Policy interface {
	Evaluate(id string, u config.UserConfig, now time.Time) (armed bool, apply bool)
}

// WorkingHoursPolicy arms a user inside their working-hours window and
// disarms them outside it. It only applies to users that opted in via
// auto_arm.
type WorkingHoursPolicy struct{}

func (WorkingHoursPolicy) Evaluate(_ string, u config.UserConfig, now time.Time) (bool, bool) {
	if !u.AutoArm {
		return false, false
	}
	w, err := WindowFor(u.WorkingHours)
	if err != nil {
		return false, false
	}
	return w.Within(now), true
}

// Scheduler periodically re-evaluates the policy for every user and
// writes the result through the armed-state store. Writes are idempotent;
// re-running an unchanged evaluation is harmless.
type Scheduler struct {
	Users    map[string]config.UserConfig
	Policy   Policy
	Armed    *armed.Store
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// Run loops until ctx is done. It always returns nil; store write errors
// are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval == 0 {
		interval = 60 * time.Second
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.tick(ctx, now())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for id, u := range s.Users {
		want, apply := s.Policy.Evaluate(id, u, now)
		if !apply {
			continue
		}
		if err := s.Armed.Set(ctx, id, want); err != nil {
			s.Logger.Warn("auto-arm write failed", "user", id, "armed", want, "error", err)
		}
	}
}
