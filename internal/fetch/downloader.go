// Package fetch downloads bill documents and caches their bytes locally.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// ErrHTTPStatus is returned for a non-2xx response.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// MaxDocumentBytes bounds a single download.
const MaxDocumentBytes = 64 << 20

// Response is a downloaded document.
type Response struct {
	Content     []byte
	ContentType string
}

// Downloader fetches documents over HTTP with a per-request timeout and retries.
type Downloader struct {
	client    *http.Client
	userAgent string
	attempts  int
	baseDelay time.Duration
	logger    *zap.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithTimeout bounds each request attempt.
func WithTimeout(d time.Duration) DownloaderOption {
	return func(dl *Downloader) { dl.client.Timeout = d }
}

// WithRetry sets the number of attempts and the first backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) DownloaderOption {
	return func(dl *Downloader) {
		dl.attempts = attempts
		dl.baseDelay = baseDelay
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) DownloaderOption {
	return func(dl *Downloader) { dl.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) DownloaderOption {
	return func(dl *Downloader) { dl.logger = l }
}

// NewDownloader returns a downloader with a 30s timeout and 3 attempts.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	dl := &Downloader{
		client:    &http.Client{Timeout: 30 * time.Second},
		attempts:  3,
		baseDelay: time.Second,
	}
	for _, opt := range opts {
		opt(dl)
	}
	dl.logger = utils.OrNop(dl.logger)
	return dl
}

// Get downloads url. 4xx responses are not retried.
func (d *Downloader) Get(ctx context.Context, url string) (*Response, error) {
	var resp *Response
	attempt := 0
	err := utils.RetryWithBackoff(ctx, func() error {
		attempt++
		r, err := d.get(ctx, url)
		if err != nil {
			d.logger.Debug("download attempt failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		resp = r
		return nil
	}, d.attempts, d.baseDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	return resp, nil
}

func (d *Downloader) get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.Permanent(err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	res, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		err := fmt.Errorf("%w: %d", ErrHTTPStatus, res.StatusCode)
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, MaxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxDocumentBytes {
		return nil, utils.Permanent(fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes))
	}
	return &Response{Content: body, ContentType: res.Header.Get("Content-Type")}, nil
}
