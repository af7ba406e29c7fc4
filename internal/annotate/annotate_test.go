// Package annotate tests render onto small synthetic images.
package annotate

import (
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/spf13/afero"

	"camsentry/internal/config"
	"camsentry/internal/detect"
)

func writeTestJPEG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{100, 100, 100, 255})
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

// TestAnnotateProducesMarkedCopy writes a decodable annotated jpeg next
// to the original and leaves the original untouched.
func TestAnnotateProducesMarkedCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestJPEG(t, fs, "/data/cam1/a.jpg", 320, 240)
	before, _ := afero.ReadFile(fs, "/data/cam1/a.jpg")

	dets := detect.Result{
		config.CategoryPerson: {{X1: 40, Y1: 40, X2: 120, Y2: 200, Confidence: 0.91}},
	}
	out, err := Annotate(fs, "/data/cam1/a.jpg", dets, "cam1", "{username} {timestamp}", time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if out != "/data/cam1/a_marked.jpg" {
		t.Fatalf("unexpected output path: %s", out)
	}

	f, err := fs.Open(out)
	if err != nil {
		t.Fatalf("open marked: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("marked file is not a valid jpeg: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
		t.Fatalf("unexpected dimensions: %v", img.Bounds())
	}

	after, _ := afero.ReadFile(fs, "/data/cam1/a.jpg")
	if string(before) != string(after) {
		t.Fatalf("original must not be modified")
	}
}

// TestAnnotateRejectsGarbage fails cleanly on non-image input.
func TestAnnotateRejectsGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a.jpg", []byte("not an image"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Annotate(fs, "/a.jpg", detect.Result{}, "cam1", "w", time.Now()); err == nil {
		t.Fatalf("expected decode error")
	}
	if ok, _ := afero.Exists(fs, "/a_marked.jpg"); ok {
		t.Fatalf("no partial output expected")
	}
}

// TestExpandWatermark fills both tokens.
func TestExpandWatermark(t *testing.T) {
	got := expandWatermark("cam {username} at {timestamp}", "cam1", time.Date(2026, 1, 5, 12, 30, 45, 0, time.UTC))
	want := "cam cam1 at 2026-01-05 12:30:45"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
