// Package alert guards the outbound alert channel: a webhook submission
// behind a per-user distributed lock and cooldown.
package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/spf13/afero"
)

// Webhook submits an alert with its image. A non-200 response is a
// failure.
type Webhook interface {
	Send(ctx context.Context, url, imagePath, title, message, severity string) error
}

// HTTPWebhook posts a multipart form with Image, Title, Message, and
// Severity parts.
type HTTPWebhook struct {
	FS     afero.Fs
	Client *http.Client
}

func NewHTTPWebhook(fs afero.Fs) *HTTPWebhook {
	return &HTTPWebhook{FS: fs, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (w *HTTPWebhook) Send(ctx context.Context, url, imagePath, title, message, severity string) error {
	img, err := w.FS.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open alert image: %w", err)
	}
	defer img.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="Image"; filename="image.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	fw, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, img); err != nil {
		return fmt.Errorf("read alert image: %w", err)
	}
	for k, v := range map[string]string{
		"Title":    title,
		"Message":  message,
		"Severity": severity,
	} {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

var _ Webhook = (*HTTPWebhook)(nil)
