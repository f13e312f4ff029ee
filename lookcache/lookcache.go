// Package lookcache remembers the last generated composite per product
// page. Entries live in the shared store under "look_<canonical URL>"; a
// go-cache layer in front of it absorbs repeated reads while the user stays
// on one page.
package lookcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hazyhaar/snse/store"
)

// Backend is the persistent layer.
type Backend interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, v any) error
}

// Options configures a Cache.
type Options struct {
	// TTL bounds how long the memory layer trusts an entry, so a look
	// written by another process is picked up eventually. Default: 10m.
	TTL    time.Duration
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Cache is the look cache. Safe for concurrent use.
type Cache struct {
	backend Backend
	mem     *cache.Cache
	logger  *slog.Logger
}

// New creates a Cache over backend.
func New(backend Backend, opts Options) *Cache {
	opts.defaults()
	return &Cache{
		backend: backend,
		mem:     cache.New(opts.TTL, 2*opts.TTL),
		logger:  opts.Logger,
	}
}

// Canonical normalizes a page URL into its cache identity: surrounding
// whitespace and the fragment are dropped, everything else is kept as-is.
func Canonical(pageURL string) string {
	s := strings.TrimSpace(pageURL)
	s, _, _ = strings.Cut(s, "#")
	return s
}

// Key returns the store key of pageURL.
func Key(pageURL string) string {
	return store.LookPrefix + Canonical(pageURL)
}

// Get returns the cached composite for pageURL. A miss is ("", false, nil).
func (c *Cache) Get(ctx context.Context, pageURL string) (string, bool, error) {
	if Canonical(pageURL) == "" {
		return "", false, nil
	}
	key := Key(pageURL)
	if v, ok := c.mem.Get(key); ok {
		return v.(string), true, nil
	}
	var ref string
	found, err := c.backend.Get(ctx, key, &ref)
	if err != nil {
		return "", false, fmt.Errorf("lookcache: get: %w", err)
	}
	if !found || ref == "" {
		return "", false, nil
	}
	c.mem.SetDefault(key, ref)
	return ref, true, nil
}

// Put records ref as the composite for pageURL, replacing any previous
// one. The store is written first; the memory layer only on success.
func (c *Cache) Put(ctx context.Context, pageURL, ref string) error {
	if Canonical(pageURL) == "" {
		return fmt.Errorf("lookcache: put: empty page URL")
	}
	key := Key(pageURL)
	if err := c.backend.Put(ctx, key, ref); err != nil {
		return fmt.Errorf("lookcache: put: %w", err)
	}
	c.mem.SetDefault(key, ref)
	c.logger.Debug("lookcache: stored", "key", key, "bytes", len(ref))
	return nil
}

// Forget drops the memory entry for pageURL; the next Get re-reads the
// store.
func (c *Cache) Forget(pageURL string) {
	c.mem.Delete(Key(pageURL))
}
