// Package detect defines the object-detection collaborator contract and
// the HTTP client that talks to the external detection service. The model
// itself is a black box behind that service.
package detect

import (
	"context"

	"camsentry/internal/config"
)

// Box is one detection: corner coordinates in image pixels plus the model
// confidence.
type Box struct {
	X1, Y1, X2, Y2 float64
	Confidence     float64
}

// Result groups detections by category name (person, vehicle, animal).
type Result map[string][]Box

// Detector analyzes an image with the user's thresholds and toggles
// applied. Implementations return an error for any failure; an image with
// nothing in it is a success with an empty Result.
type Detector interface {
	Detect(ctx context.Context, path string, u config.UserConfig) (Result, error)
}

// Filter reduces a result to the category names that are both enabled for
// the user and non-empty, in report order.
func Filter(r Result, u config.UserConfig) []string {
	var out []string
	for _, cat := range config.Categories {
		if u.Category(cat).Enable && len(r[cat]) > 0 {
			out = append(out, cat)
		}
	}
	return out
}
