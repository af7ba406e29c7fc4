// Package armed reads and writes the per-user armed flag. The external
// store is the source of truth; the configured default only applies when
// the store has no entry for a user, and a miss is never written back.
// Every read is a store round trip: a chat-bot command in another process
// may flip the flag at any time, so no in-process cache is allowed.
package armed

import (
	"context"
	"log/slog"

	"camsentry/internal/config"
	"camsentry/internal/store"
)

type Store struct {
	kv     store.KV
	prefix string
	users  map[string]config.UserConfig
	lg     *slog.Logger
}

func New(kv store.KV, prefix string, users map[string]config.UserConfig, lg *slog.Logger) *Store {
	return &Store{kv: kv, prefix: prefix, users: users, lg: lg}
}

func (s *Store) key(user string) string { return s.prefix + user }

// Get returns the user's armed state. A store miss falls back to the
// configured default; a store error does the same but is logged, since the
// value may be stale until connectivity resumes.
func (s *Store) Get(ctx context.Context, user string) bool {
	def := s.users[user].ArmedDefault
	v, ok, err := s.kv.Get(ctx, s.key(user))
	if err != nil {
		s.lg.Warn("armed-state read failed, using config default", "user", user, "default", def, "error", err)
		return def
	}
	if !ok {
		return def
	}
	return v == "true"
}

// Set writes the armed state through immediately.
func (s *Store) Set(ctx context.Context, user string, v bool) error {
	return s.kv.Set(ctx, s.key(user), boolValue(v))
}

// SeedDefaults creates a store entry from the config default for every
// configured user that has none yet. Existing entries are left alone.
func (s *Store) SeedDefaults(ctx context.Context) error {
	for user, u := range s.users {
		_, ok, err := s.kv.Get(ctx, s.key(user))
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.kv.Set(ctx, s.key(user), boolValue(u.ArmedDefault)); err != nil {
			return err
		}
		s.lg.Info("seeded armed state", "user", user, "armed", u.ArmedDefault)
	}
	return nil
}

// boolValue matches the literal encoding an operator would write with
// redis-cli, and the one the chat-bot control channel uses.
func boolValue(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
