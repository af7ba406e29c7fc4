// Package annotate renders detection boxes and a watermark onto a copy of
// an uploaded image. The original file is never modified; the annotated
// copy is a temporary artifact the pipeline deletes after dispatch.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"camsentry/internal/config"
	"camsentry/internal/detect"
)

const (
	boxThickness = 2
	jpegQuality  = 90
)

// categoryColor matches the legacy color scheme camera operators know:
// green persons, blue vehicles, red animals.
func categoryColor(cat string) color.RGBA {
	switch cat {
	case config.CategoryPerson:
		return color.RGBA{0, 255, 0, 255}
	case config.CategoryVehicle:
		return color.RGBA{0, 0, 255, 255}
	default:
		return color.RGBA{255, 0, 0, 255}
	}
}

// Annotate draws all detections and the user's watermark onto a copy of
// the image at path and writes it next to the original as
// "<name>_marked.jpg". It returns the new file's path.
func Annotate(fs afero.Fs, path string, dets detect.Result, username, tmpl string, now time.Time) (string, error) {
	in, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	src, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	img := image.NewRGBA(b)
	draw.Draw(img, b, src, b.Min, draw.Src)

	for _, cat := range config.Categories {
		col := categoryColor(cat)
		for _, box := range dets[cat] {
			r := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
			drawRect(img, r, col)
			drawLabel(img, r.Min.X, r.Min.Y-4, fmt.Sprintf("%s %.2f", cat, box.Confidence), col)
		}
	}

	drawWatermark(img, expandWatermark(tmpl, username, now))

	ext := filepath.Ext(path)
	out := strings.TrimSuffix(path, ext) + "_marked.jpg"
	f, err := fs.Create(out)
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		_ = fs.Remove(out)
		return "", fmt.Errorf("encode annotated image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return out, nil
}

// expandWatermark fills the {username} and {timestamp} tokens.
func expandWatermark(tmpl, username string, now time.Time) string {
	return strings.NewReplacer(
		"{username}", username,
		"{timestamp}", now.Format("2006-01-02 15:04:05"),
	).Replace(tmpl)
}

// drawRect strokes the rectangle outline with boxThickness.
func drawRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	u := image.NewUniform(col)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), // top
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), // left
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}

// drawLabel renders small text at (x, y baseline) in the given color.
func drawLabel(img *image.RGBA, x, y int, text string, col color.RGBA) {
	face := basicfont.Face7x13
	if y < face.Height {
		y = face.Height
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawWatermark places the text bottom-right over a semi-transparent
// backing rectangle so it stays readable on any background.
func drawWatermark(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	b := img.Bounds()
	w := font.MeasureString(face, text).Ceil()

	x := b.Max.X - w - 10
	y := b.Max.Y - 10
	if x < b.Min.X {
		x = b.Min.X
	}

	backing := image.Rect(x-5, y-face.Height-5, b.Max.X, b.Max.Y)
	draw.Draw(img, backing.Intersect(b), image.NewUniform(color.RGBA{0, 0, 0, 128}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
