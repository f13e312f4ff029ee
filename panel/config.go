package panel

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/snse/catalog"
	"github.com/hazyhaar/snse/imageembed"
	"github.com/hazyhaar/snse/imagegen"
	"github.com/hazyhaar/snse/lookcache"
	"github.com/hazyhaar/snse/store"
)

// Settings is the YAML-facing panel configuration.
type Settings struct {
	Addr        string          `yaml:"addr"`
	CatalogPath string          `yaml:"catalog"` // empty = embedded default table
	Gateway     GatewaySettings `yaml:"gateway"`
	LookTTL     time.Duration   `yaml:"look_ttl"`
	StorePoll   time.Duration   `yaml:"store_poll"`
	Embed       EmbedSettings   `yaml:"embed"`
}

// GatewaySettings configures the image generation gateway.
type GatewaySettings struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbedSettings configures image embedding.
type EmbedSettings struct {
	MaxBytes int64 `yaml:"max_bytes"`
	// AllowPrivate lets embedding fetch loopback and private addresses.
	AllowPrivate bool `yaml:"allow_private"`
}

// Defaults fills unset fields.
func (s *Settings) Defaults() {
	if s.Addr == "" {
		s.Addr = "127.0.0.1:8765"
	}
	if s.Gateway.Endpoint == "" {
		s.Gateway.Endpoint = imagegen.DefaultEndpoint
	}
	if s.Gateway.Model == "" {
		s.Gateway.Model = imagegen.DefaultModel
	}
	if s.Gateway.MinInterval <= 0 {
		s.Gateway.MinInterval = 2 * time.Second
	}
	if s.Gateway.Timeout <= 0 {
		s.Gateway.Timeout = 120 * time.Second
	}
	if s.LookTTL <= 0 {
		s.LookTTL = 10 * time.Minute
	}
	if s.StorePoll <= 0 {
		s.StorePoll = 500 * time.Millisecond
	}
	if s.Embed.MaxBytes <= 0 {
		s.Embed.MaxBytes = imageembed.MaxImageBytes
	}
}

// NewFromSettings builds a Controller over st with every collaborator
// configured from s.
func NewFromSettings(st *store.Store, s Settings, logger *slog.Logger) (*Controller, error) {
	s.Defaults()
	if logger == nil {
		logger = slog.Default()
	}

	cat := catalog.Default()
	if s.CatalogPath != "" {
		var err error
		if cat, err = catalog.Load(s.CatalogPath); err != nil {
			return nil, err
		}
	}

	embedOpts := []imageembed.Option{
		imageembed.WithMaxBytes(s.Embed.MaxBytes),
		imageembed.WithLogger(logger),
	}
	if s.Embed.AllowPrivate {
		embedOpts = append(embedOpts, imageembed.WithURLGuard(nil))
	}

	gen := imagegen.New(
		imagegen.WithEndpoint(s.Gateway.Endpoint),
		imagegen.WithModel(s.Gateway.Model),
		imagegen.WithLimiter(rate.NewLimiter(rate.Every(s.Gateway.MinInterval), 1)),
		imagegen.WithClient(&http.Client{Timeout: s.Gateway.Timeout}),
		imagegen.WithLogger(logger),
	)

	return New(Config{
		Store:     st,
		Catalog:   cat,
		Looks:     lookcache.New(st, lookcache.Options{TTL: s.LookTTL, Logger: logger}),
		Generator: gen,
		Embedder:  imageembed.New(embedOpts...),
		Logger:    logger,
	})
}
