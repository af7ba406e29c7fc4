package fsutil

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

// TestCleanupFilePrunesEmptyAncestors removes the file and empty date
// directories, but never the user root itself.
func TestCleanupFilePrunesEmptyAncestors(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := "/data/cam1"
	path := root + "/2026/01/05/a.jpg"
	if err := afero.WriteFile(fs, path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := CleanupFile(fs, path, root); err != nil {
		t.Fatalf("CleanupFile: %v", err)
	}
	for _, p := range []string{path, root + "/2026/01/05", root + "/2026"} {
		if ok, _ := afero.Exists(fs, p); ok {
			t.Fatalf("expected %s to be removed", p)
		}
	}
	if ok, _ := afero.DirExists(fs, root); !ok {
		t.Fatalf("user root must survive cleanup")
	}
}

// TestCleanupFileKeepsOccupiedDirectories stops pruning at the first
// non-empty ancestor.
func TestCleanupFileKeepsOccupiedDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := "/data/cam1"
	if err := afero.WriteFile(fs, root+"/2026/a.jpg", []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := afero.WriteFile(fs, root+"/2026/b.jpg", []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := CleanupFile(fs, root+"/2026/a.jpg", root); err != nil {
		t.Fatalf("CleanupFile: %v", err)
	}
	if ok, _ := afero.Exists(fs, root+"/2026/b.jpg"); !ok {
		t.Fatalf("sibling upload must survive")
	}
	if ok, _ := afero.DirExists(fs, root+"/2026"); !ok {
		t.Fatalf("non-empty directory must survive")
	}
}

// TestArchiveCopyWritesTimestampedCopy stores a copy under the per-user
// archive directory.
func TestArchiveCopyWritesTimestampedCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := "/data/cam1/a.jpg"
	if err := afero.WriteFile(fs, src, []byte("image-bytes"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	now := time.Date(2026, 1, 5, 13, 45, 6, 0, time.UTC)
	dst, err := ArchiveCopy(fs, src, "cam1", "/archive", now)
	if err != nil {
		t.Fatalf("ArchiveCopy: %v", err)
	}
	if dst != "/archive/cam1/20260105_134506_a.jpg" {
		t.Fatalf("unexpected archive path: %s", dst)
	}
	b, err := afero.ReadFile(fs, dst)
	if err != nil || string(b) != "image-bytes" {
		t.Fatalf("archive content mismatch: %q %v", b, err)
	}
}
