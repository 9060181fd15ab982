package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxImageBytes caps the download; WhatsApp media tops out well below this.
const maxImageBytes = 20 << 20

// Downloader fetches message media from the provider's CDN.
type Downloader struct {
	httpClient *http.Client
}

// NewDownloader creates a downloader with a bounded request timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Downloader{httpClient: &http.Client{Timeout: timeout}}
}

// Download fetches the image behind url and returns its bytes and MIME type.
// Non-image content types are rejected.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	mimeType := mimeTypeFor(resp.Header.Get("Content-Type"), url)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("url does not point to an image (content type %s)", mimeType)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if len(content) == 0 {
		return nil, "", fmt.Errorf("downloaded image is empty")
	}
	if len(content) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	slog.Debug("image downloaded", "bytes", len(content), "mime_type", mimeType)
	return content, mimeType, nil
}

// mimeTypeFor prefers the response header and falls back to guessing from
// the URL extension.
func mimeTypeFor(contentType, url string) string {
	if contentType != "" {
		if i := strings.Index(contentType, ";"); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.TrimSpace(contentType)
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
