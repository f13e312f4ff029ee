package domwatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hazyhaar/snse/domwatch/internal/browser"
	"github.com/hazyhaar/snse/domwatch/internal/fetcher"
	"github.com/hazyhaar/snse/extract"
)

// browserPage owns its Chrome manager so closing the page shuts Chrome down.
type browserPage struct {
	*browser.Tab
	mgr *browser.Manager
}

func (p *browserPage) Close() error {
	err := p.Tab.Close()
	if cerr := p.mgr.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenPage acquires pageURL at cfg.StealthLevel. With "auto" the page is
// fetched over HTTP first and a browser is only launched when that HTML
// yields no titled signal.
func OpenPage(ctx context.Context, cfg *Config, pageURL string, logger *slog.Logger) (Page, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("domwatch: invalid page url %q", pageURL)
	}

	fetch := fetcher.New(fetcher.WithLogger(logger))

	switch cfg.StealthLevel {
	case StealthHTTP:
		return fetcher.NewPage(fetch, pageURL), nil
	case StealthBrowser:
		return openBrowserPage(ctx, cfg, pageURL, logger)
	}

	res, err := fetch.Fetch(ctx, pageURL)
	if err != nil {
		logger.Warn("domwatch: auto-detect fetch failed, escalating to browser",
			"url", pageURL, "error", err)
		return openBrowserPage(ctx, cfg, pageURL, logger)
	}
	sig, err := extract.ExtractHTML(res.HTML, extract.Options{
		BaseURL:        pageURL,
		TitleSelectors: cfg.Extract.TitleSelectors,
		Containers:     cfg.Extract.Containers,
	})
	if err == nil && sig.Found() {
		logger.Info("domwatch: static page yields a product, using HTTP", "url", pageURL)
		return fetcher.NewPage(fetch, pageURL), nil
	}
	logger.Info("domwatch: no product via HTTP, escalating to browser", "url", pageURL)
	return openBrowserPage(ctx, cfg, pageURL, logger)
}

func openBrowserPage(ctx context.Context, cfg *Config, pageURL string, logger *slog.Logger) (Page, error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Headful,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("domwatch: start browser: %w", err)
	}
	tab, err := browser.OpenTab(ctx, mgr, pageURL)
	if err != nil {
		mgr.Close()
		return nil, fmt.Errorf("domwatch: open tab: %w", err)
	}
	logger.Info("domwatch: observing page in browser", "url", pageURL, "headful", cfg.Browser.Headful)
	return &browserPage{Tab: tab, mgr: mgr}, nil
}
