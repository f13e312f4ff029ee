// Package fetcher implements the HTTP-only acquisition path.
// No browser, no JS: each HTML call is a single GET.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/snse/domwatch/mutation"
)

// MaxBody caps a fetched page.
const MaxBody = 10 << 20

// Result is the outcome of an HTTP fetch.
type Result struct {
	HTML       []byte
	StatusCode int
	ETag       string
}

// Fetcher performs HTTP GETs.
type Fetcher struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; snse/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs a URL. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetcher: %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))

	return &Result{
		HTML:       body,
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
	}, nil
}

// Page is a static page backed by a Fetcher. It has no mutation stream.
type Page struct {
	f   *Fetcher
	url string
}

// NewPage returns a Page that re-fetches pageURL on every HTML call.
func NewPage(f *Fetcher, pageURL string) *Page {
	return &Page{f: f, url: pageURL}
}

func (p *Page) URL() string { return p.url }

func (p *Page) HTML(ctx context.Context) ([]byte, error) {
	res, err := p.f.Fetch(ctx, p.url)
	if err != nil {
		return nil, err
	}
	return res.HTML, nil
}

// Mutations returns a nil channel: static pages cannot be watched.
func (p *Page) Mutations(context.Context) (<-chan mutation.Record, error) {
	return nil, nil
}

func (p *Page) Close() error { return nil }
