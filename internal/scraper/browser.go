// Package scraper reads Missouri House and Senate pages through a headless
// browser and returns typed bill and member records.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// ErrBrowserClosed is returned by Evaluate after Close.
var ErrBrowserClosed = errors.New("browser closed")

// Evaluator loads a page and evaluates a JavaScript expression on it, decoding
// the JSON result into out.
type Evaluator interface {
	Evaluate(ctx context.Context, url, waitSelector, js string, out any) error
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Headless    bool
	UserAgent   string
	PageTimeout time.Duration
}

// Browser drives one Chrome tab. Pages are loaded strictly one at a time.
type Browser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
	closed      bool
}

// NewBrowser starts Chrome and opens a tab.
func NewBrowser(ctx context.Context, cfg BrowserConfig, logger *zap.Logger) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tctx, cancelTab := chromedp.NewContext(actx)

	// Start the browser now so a missing Chrome fails here instead of on the first page.
	if err := chromedp.Run(tctx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Browser{
		ctx:         tctx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		timeout:     timeout,
		logger:      utils.OrNop(logger),
	}, nil
}

// Evaluate navigates to url, waits for waitSelector (when set), and evaluates js.
// Each call is bounded by the page timeout and by ctx.
func (b *Browser) Evaluate(ctx context.Context, url, waitSelector, js string, out any) error {
	if b.closed {
		return ErrBrowserClosed
	}
	pctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.Evaluate(js, out))

	start := time.Now()
	if err := chromedp.Run(pctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to evaluate %s: %w", url, err)
	}
	b.logger.Debug("page evaluated", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Close shuts the tab and the browser process.
func (b *Browser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.cancelTab()
	b.cancelAlloc()
	return nil
}
