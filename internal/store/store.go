// Package store defines the external-store capabilities the service
// depends on: a key-value store and a TTL-based distributed lock. One
// Redis backend implements both, but the interfaces stay separate so
// components and tests can substitute them independently.
package store

import (
	"context"
	"time"
)

// KV is a shared key-value store. Values written here must be visible to
// other processes (e.g. the chat-bot control channel) immediately; no
// caching may sit in front of it.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Locker is a distributed mutual-exclusion primitive. An acquired lock
// expires on its own after ttl, so a crashed holder cannot wedge it.
type Locker interface {
	// TryLock attempts a non-blocking acquire and reports whether the
	// lock was obtained.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
