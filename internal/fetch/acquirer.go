package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/molegis/internal/extract"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// Getter downloads a URL.
type Getter interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Observer receives download timings. Nil is allowed.
type Observer interface {
	ObserveDownload(d time.Duration, cached bool, err error)
}

// Acquirer produces raw text for a document URL: cache, then download, then extract.
type Acquirer struct {
	getter    Getter
	cache     *BlobCache
	extractor *extract.Extractor
	observer  Observer
	logger    *zap.Logger
}

// NewAcquirer creates an acquirer. cache and observer may be nil.
func NewAcquirer(getter Getter, cache *BlobCache, observer Observer, logger *zap.Logger) *Acquirer {
	return &Acquirer{
		getter:    getter,
		cache:     cache,
		extractor: extract.NewExtractor(),
		observer:  observer,
		logger:    utils.OrNop(logger),
	}
}

// Acquire returns the raw extracted text of the document at url.
func (a *Acquirer) Acquire(ctx context.Context, url string) (string, error) {
	start := time.Now()
	resp, cached, err := a.fetch(ctx, url)
	if a.observer != nil {
		a.observer.ObserveDownload(time.Since(start), cached, err)
	}
	if err != nil {
		return "", err
	}

	text, err := a.extractor.ExtractBytes(resp.Content, resp.ContentType, url)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", url, err)
	}
	return text, nil
}

func (a *Acquirer) fetch(ctx context.Context, url string) (*Response, bool, error) {
	if a.cache != nil {
		resp, ok, err := a.cache.Get(url)
		if err != nil {
			a.logger.Warn("blob cache read failed", zap.String("url", url), zap.Error(err))
		} else if ok {
			return resp, true, nil
		}
	}

	resp, err := a.getter.Get(ctx, url)
	if err != nil {
		return nil, false, err
	}
	if a.cache != nil {
		if err := a.cache.Put(url, resp); err != nil {
			a.logger.Warn("blob cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return resp, false, nil
}
