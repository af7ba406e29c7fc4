// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// userIDRe enforces a conservative pattern for user ids and usernames.
var userIDRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// UserID validates a user id or username for length and allowed characters.
func UserID(s string) error {
	if !userIDRe.MatchString(s) {
		return errors.New("invalid user id")
	}
	return nil
}

// RootPath validates and normalizes a filesystem root path.
func RootPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("root path is required")
	}
	clean := filepath.Clean(p)
	if !filepath.IsAbs(clean) {
		return "", errors.New("root path must be absolute")
	}
	// Reject volume root ("/", "C:\\", etc.).
	if filepath.Dir(clean) == clean {
		return "", errors.New("root path cannot be filesystem root")
	}
	clean = strings.TrimRight(clean, string(filepath.Separator))
	if clean == "" {
		return "", errors.New("invalid root path")
	}
	return clean, nil
}
