// Package imageembed turns image references into self-contained data URLs
// before they are saved to the wardrobe or sent to the generation backend.
package imageembed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/snse/horosafe"
)

// MaxImageBytes caps a fetched image (8 MiB).
const MaxImageBytes int64 = 8 << 20

// FetchFailedError is returned when a reference cannot be embedded.
type FetchFailedError struct {
	Ref   string
	Cause error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("imageembed: fetch %s: %v", shorten(e.Ref), e.Cause)
}

func (e *FetchFailedError) Unwrap() error { return e.Cause }

// Embedder fetches remote images and encodes them as data URLs.
type Embedder struct {
	client   *http.Client
	ua       string
	guard    func(string) error
	maxBytes int64
	logger   *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(e *Embedder) { e.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Embedder) { e.ua = ua }
}

// WithURLGuard replaces the SSRF check run before each fetch. nil disables
// it (tests against httptest servers on loopback).
func WithURLGuard(fn func(string) error) Option {
	return func(e *Embedder) { e.guard = fn }
}

// WithMaxBytes caps the image size.
func WithMaxBytes(n int64) Option {
	return func(e *Embedder) { e.maxBytes = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Embedder) { e.logger = l }
}

// New creates an Embedder with horosafe.ValidateURL as guard.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       "Mozilla/5.0 (compatible; snse/1.0)",
		guard:    horosafe.ValidateURL,
		maxBytes: MaxImageBytes,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.guard != nil && e.client.CheckRedirect == nil {
		c := *e.client
		c.CheckRedirect = e.checkRedirect
		e.client = &c
	}
	return e
}

// checkRedirect runs the guard on every redirect target.
func (e *Embedder) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	return e.guard(req.URL.String())
}

// Embed returns ref as a data URL. Data URLs pass through unchanged; http(s)
// URLs are fetched. Every failure is a *FetchFailedError.
func (e *Embedder) Embed(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &FetchFailedError{Ref: ref, Cause: fmt.Errorf("empty reference")}
	}
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	if e.guard != nil {
		if err := e.guard(ref); err != nil {
			return "", &FetchFailedError{Ref: ref, Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", &FetchFailedError{Ref: ref, Cause: err}
	}
	req.Header.Set("User-Agent", e.ua)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,image/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &FetchFailedError{Ref: ref, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchFailedError{Ref: ref, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := horosafe.LimitedReadAll(resp.Body, e.maxBytes)
	if err != nil {
		return "", &FetchFailedError{Ref: ref, Cause: err}
	}
	if len(body) == 0 {
		return "", &FetchFailedError{Ref: ref, Cause: fmt.Errorf("empty body")}
	}

	mt := mediaType(resp.Header.Get("Content-Type"), body)
	if !strings.HasPrefix(mt, "image/") {
		return "", &FetchFailedError{Ref: ref, Cause: fmt.Errorf("not an image: %s", mt)}
	}

	e.logger.Debug("imageembed: embedded", "ref", shorten(ref), "mime", mt, "size", len(body))
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

// mediaType prefers a declared image/* Content-Type and sniffs otherwise.
func mediaType(header string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mt
}

func shorten(ref string) string {
	if len(ref) > 80 {
		return ref[:80] + "..."
	}
	return ref
}
