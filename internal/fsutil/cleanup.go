package fsutil

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// CleanupFile removes a file and prunes now-empty ancestor directories up
// to, but excluding, stopRoot. Cameras upload into dated subdirectories;
// pruning keeps the user root from accumulating empty date folders.
func CleanupFile(fs afero.Fs, path, stopRoot string) error {
	if exists, _ := afero.Exists(fs, path); exists {
		if err := fs.Remove(path); err != nil {
			return err
		}
	}
	stop := filepath.Clean(stopRoot)
	dir := filepath.Dir(filepath.Clean(path))
	for dir != stop && isWithin(stop, dir) {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := fs.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// ArchiveCopy saves a timestamped copy of src into a per-user directory
// under archiveDir and returns the new path.
func ArchiveCopy(fs afero.Fs, src, username, archiveDir string, now time.Time) (string, error) {
	userDir := filepath.Join(archiveDir, username)
	if err := fs.MkdirAll(userDir, 0o700); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), filepath.Base(src))
	dst := filepath.Join(userDir, name)

	in, err := fs.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := fs.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = fs.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
