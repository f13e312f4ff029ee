// Package imagegen sends a composed outfit to the multimodal generation
// backend and returns the composite image as a data URL.
//
// Validation runs before any network call: a missing credential or a
// request with no usable image never reaches the backend.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/snse/horosafe"
	"github.com/hazyhaar/snse/outfit"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-3-pro-image-preview"

	// MaxResponseBytes caps the response, which carries the image inline.
	MaxResponseBytes int64 = 32 << 20
)

// Gateway calls the generation backend. Safe for concurrent use.
type Gateway struct {
	endpoint string
	model    string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithEndpoint sets the API base URL (without /models).
func WithEndpoint(u string) Option { return func(g *Gateway) { g.endpoint = u } }

// WithModel sets the model name.
func WithModel(m string) Option { return func(g *Gateway) { g.model = m } }

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option { return func(g *Gateway) { g.client = c } }

// WithLimiter replaces the default limiter (one call per 2s, burst 1).
func WithLimiter(l *rate.Limiter) Option { return func(g *Gateway) { g.limiter = l } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.logger = l } }

// New creates a Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		endpoint: DefaultEndpoint,
		model:    DefaultModel,
		client:   &http.Client{Timeout: 120 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate composes the selection and the profile's likeness into one
// request and returns the generated image as a data URL.
func (g *Gateway) Generate(ctx context.Context, sel outfit.Selection, p outfit.Profile) (string, error) {
	if p.APIKey == "" {
		return "", ErrMissingCredential
	}
	images := validImages(candidates(sel, p), g.logger)
	if len(images) == 0 {
		return "", ErrNoValidInput
	}

	body, err := json.Marshal(buildRequest(Prompt(p), images))
	if err != nil {
		return "", fmt.Errorf("imagegen: marshal: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("imagegen: rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.endpoint, url.PathEscape(g.model), url.QueryEscape(p.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("imagegen: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	g.logger.Info("imagegen: sending request", "model", g.model, "images", len(images), "bytes", len(body))
	start := time.Now()

	resp, err := g.client.Do(req)
	if err != nil {
		// The URL carries the key; report the operation only.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("imagegen: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := horosafe.LimitedReadAll(resp.Body, MaxResponseBytes)
	if err != nil {
		return "", fmt.Errorf("imagegen: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rej := rejection(resp.StatusCode, respBody)
		g.logger.Warn("imagegen: rejected", "status", resp.StatusCode, "message", rej.Message)
		return "", rej
	}

	ref, err := parseResult(respBody)
	if err != nil {
		g.logger.Warn("imagegen: no image in response", "error", err, "duration", time.Since(start))
		return "", err
	}
	g.logger.Info("imagegen: generated", "bytes", len(ref), "duration", time.Since(start))
	return ref, nil
}
