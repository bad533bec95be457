package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome before extraction, for
// sites that build their content with JavaScript. Each Fetch runs in a
// fresh tab against a shared allocator.
type BrowserFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
}

type BrowserConfig struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewBrowserFetcher(ctx context.Context, cfg BrowserConfig) *BrowserFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	tabCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// Stop early if the crawl itself is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-tabCtx.Done():
		}
	}()

	var rendered string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		return nil, "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return []byte(rendered), "text/html", nil
}

// Close shuts the shared browser down.
func (b *BrowserFetcher) Close() {
	b.allocCancel()
}
