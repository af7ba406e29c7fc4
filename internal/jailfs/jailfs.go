// Package jailfs exposes a per-user filesystem rooted at the user's
// storage directory. Every path a client supplies is resolved through
// fsutil before it touches the backing afero filesystem.
package jailfs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"camsentry/internal/fsutil"
)

type FS struct {
	root string
	base afero.Fs
}

// New jails base at root. base is typically afero.NewOsFs; tests pass a
// MemMapFs.
func New(base afero.Fs, root string) *FS {
	return &FS{root: root, base: base}
}

// Root returns the jail's root directory on the backing filesystem.
func (f *FS) Root() string { return f.root }

// Resolve maps a client path to its location on the backing filesystem.
func (f *FS) Resolve(name string) (string, error) {
	return fsutil.ResolveWithinRoot(f.base, f.root, name)
}

func (f *FS) Create(name string) (afero.File, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := f.base.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}
	return f.base.Create(p)
}

func (f *FS) Open(name string) (afero.File, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f.base.Open(p)
}

func (f *FS) MkdirAll(name string, perm os.FileMode) error {
	p, err := f.Resolve(name)
	if err != nil {
		return err
	}
	return f.base.MkdirAll(p, perm)
}

func (f *FS) Remove(name string) error {
	p, err := f.Resolve(name)
	if err != nil {
		return err
	}
	return f.base.Remove(p)
}

func (f *FS) Stat(name string) (os.FileInfo, error) {
	p, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f.base.Stat(p)
}
