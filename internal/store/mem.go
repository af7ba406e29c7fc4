package store

import (
	"context"
	"sync"
	"time"
)

// Mem is an in-memory KV and Locker for tests and local development.
// The clock is injectable so lock expiry can be driven deterministically.
type Mem struct {
	mu      sync.Mutex
	values  map[string]string
	locks   map[string]time.Time
	Now     func() time.Time
	FailAll bool // when set, every call returns ErrUnavailable
}

// ErrUnavailable simulates an unreachable store.
var ErrUnavailable = errUnavailable{}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "store unavailable" }

func NewMem() *Mem {
	return &Mem{
		values: make(map[string]string),
		locks:  make(map[string]time.Time),
		Now:    time.Now,
	}
}

func (m *Mem) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return "", false, ErrUnavailable
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Mem) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return ErrUnavailable
	}
	m.values[key] = value
	return nil
}

func (m *Mem) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return false, ErrUnavailable
	}
	now := m.Now()
	if exp, held := m.locks[key]; held && now.Before(exp) {
		return false, nil
	}
	m.locks[key] = now.Add(ttl)
	return true, nil
}

var _ KV = (*Mem)(nil)
var _ Locker = (*Mem)(nil)
