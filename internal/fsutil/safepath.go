// Package fsutil contains filesystem helpers shared by the ingestion
// server and the processing pipeline. All operations go through afero so
// tests can run against an in-memory filesystem.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrPathTraversal = errors.New("path escapes root")

// ResolveWithinRoot maps a client-provided path to a local filesystem path
// under root. It rejects any traversal outside root, including via existing
// symlinks when the backing filesystem supports Lstat.
func ResolveWithinRoot(fs afero.Fs, root, userPath string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootClean := filepath.Clean(root)

	// Force relative paths before joining.
	p := strings.TrimLeft(userPath, "/\\")
	joined := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(p)))
	if !isWithin(rootClean, joined) {
		return "", ErrPathTraversal
	}
	if hasSymlinkComponent(fs, rootClean, joined) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// hasSymlinkComponent walks the existing components between root and the
// target and reports whether any of them is a symlink. Filesystems without
// Lstat support (e.g. MemMapFs) cannot hold symlinks and always pass.
func hasSymlinkComponent(fs afero.Fs, rootClean, fullPath string) bool {
	lst, ok := fs.(afero.Lstater)
	if !ok {
		return false
	}
	rel, err := filepath.Rel(rootClean, fullPath)
	if err != nil {
		return true
	}
	if rel == "." {
		return false
	}
	cur := rootClean
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		st, lstatCalled, err := lst.LstatIfPossible(cur)
		if err != nil {
			// Component doesn't exist (yet): nothing to traverse.
			return false
		}
		if lstatCalled && st.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func isWithin(root, candidate string) bool {
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}
