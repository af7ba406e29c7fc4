package auth

import (
	"camsentry/internal/config"
)

// Authenticate matches a (username, password) pair against the configured
// user table. It returns the matched user id and settings, or ok=false when
// no user matches. A failed username lookup still performs a dummy verify
// so response timing does not reveal which usernames exist.
func Authenticate(users map[string]config.UserConfig, username, password string) (string, config.UserConfig, bool) {
	for id, u := range users {
		if u.Username != username {
			continue
		}
		ok, err := VerifyPassword(password, u.PassHash)
		if err != nil || !ok {
			return "", config.UserConfig{}, false
		}
		return id, u, true
	}
	DummyVerify(password)
	return "", config.UserConfig{}, false
}
