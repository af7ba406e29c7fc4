package alert

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"camsentry/internal/config"
	"camsentry/internal/store"
)

// Cooldown is the minimum interval between two successful alerts for the
// same user.
const Cooldown = 300 * time.Second

const (
	lockKeyPrefix = "lock:alert:"
	lastKeyPrefix = "last_alert:"
)

// Deduper enforces at most one in-flight alert attempt per user plus the
// cooldown. Two layers guard the send: a TTL lock covering concurrent
// attempts across processes, and the last-successful-send timestamp
// covering restarts. Both live in the external store.
type Deduper struct {
	Locker  store.Locker
	KV      store.KV
	Webhook Webhook
	Now     func() time.Time
	Logger  *slog.Logger
}

// Notify attempts one outbound alert for the user. Skips are silent
// successes; only the webhook call itself can produce a logged failure,
// and a failed send keeps the old timestamp so a later attempt retries
// after the lock expires.
func (d *Deduper) Notify(ctx context.Context, userID string, u config.UserConfig, imagePath, message string) {
	if u.AlertWebhookURL == "" {
		return
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	ok, err := d.Locker.TryLock(ctx, lockKeyPrefix+userID, Cooldown)
	if err != nil {
		d.Logger.Warn("alert lock unavailable, skipping alert", "user", userID, "error", err)
		return
	}
	if !ok {
		d.Logger.Info("alert suppressed, attempt in flight or within cooldown", "user", userID)
		return
	}

	// Re-check under the lock: the lock alone would allow a second send
	// the moment it expires, so the timestamp enforces the real window.
	if last, found := d.lastSent(ctx, userID); found && now().Sub(last) < Cooldown {
		d.Logger.Info("alert suppressed by cooldown", "user", userID, "last", last)
		return
	}

	title := "Intrusion detection alert for " + u.Username
	if err := d.Webhook.Send(ctx, u.AlertWebhookURL, imagePath, title, message, "High"); err != nil {
		d.Logger.Error("alert send failed", "user", userID, "error", err)
		return
	}
	if err := d.KV.Set(ctx, lastKeyPrefix+userID, strconv.FormatInt(now().Unix(), 10)); err != nil {
		d.Logger.Warn("recording alert timestamp failed", "user", userID, "error", err)
	}
	d.Logger.Info("alert sent", "user", userID)
}

func (d *Deduper) lastSent(ctx context.Context, userID string) (time.Time, bool) {
	v, ok, err := d.KV.Get(ctx, lastKeyPrefix+userID)
	if err != nil || !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
