package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"camsentry/internal/config"
)

// HTTPDetector submits images to a detection service over HTTP. The
// request is a multipart POST with the image and a JSON settings part;
// the response is a JSON object keyed by category.
type HTTPDetector struct {
	URL     string
	FS      afero.Fs
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTP(url string, fs afero.Fs, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		URL:     url,
		FS:      fs,
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

type wireSettings struct {
	Categories map[string]wireCategory `json:"categories"`
}

type wireCategory struct {
	Enable    bool    `json:"enable"`
	Threshold float64 `json:"threshold"`
}

type wireBox struct {
	Box        [4]float64 `json:"box"`
	Confidence float64    `json:"confidence"`
}

func (d *HTTPDetector) Detect(ctx context.Context, path string, u config.UserConfig) (Result, error) {
	img, err := d.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer img.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, img); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	settings := wireSettings{Categories: make(map[string]wireCategory, len(config.Categories))}
	for _, cat := range config.Categories {
		cc := u.Category(cat)
		settings.Categories[cat] = wireCategory{Enable: cc.Enable, Threshold: cc.Threshold}
	}
	sw, err := mw.CreateFormField("settings")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(sw).Encode(settings); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service returned %d", resp.StatusCode)
	}

	var wire map[string][]wireBox
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}
	res := make(Result, len(wire))
	for cat, boxes := range wire {
		out := make([]Box, 0, len(boxes))
		for _, b := range boxes {
			out = append(out, Box{X1: b.Box[0], Y1: b.Box[1], X2: b.Box[2], Y2: b.Box[3], Confidence: b.Confidence})
		}
		res[cat] = out
	}
	return res, nil
}

var _ Detector = (*HTTPDetector)(nil)
