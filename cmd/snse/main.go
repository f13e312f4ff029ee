// Command snse runs the product detection and outfit composition engine.
//
// Usage:
//
//	snse -serve 127.0.0.1:8765                 # panel API + MCP over the shared store
//	snse -watch https://shop.example/p/hoodie  # watch one product page into the store
//	snse -extract page.html                    # print the product signal of a file or URL
//
// Serve and watch modes are separate processes sharing one SQLite store; the
// panel picks up detections written by a watcher through the store version.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/snse/domwatch"
	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/extract"
	"github.com/hazyhaar/snse/panel"
	"github.com/hazyhaar/snse/store"
	"github.com/hazyhaar/snse/watch"
)

// fileConfig is the YAML layout of -config.
type fileConfig struct {
	DB    string           `yaml:"db"`
	Panel panel.Settings   `yaml:"panel"`
	Watch *domwatch.Config `yaml:"watch"`
}

func (c *fileConfig) defaults() {
	if c.DB == "" {
		c.DB = "snse.db"
	}
	c.Panel.Defaults()
	if c.Watch == nil {
		c.Watch = domwatch.DefaultConfig()
	}
	if len(c.Watch.Sinks) == 0 {
		c.Watch.Sinks = []domwatch.SinkConfig{{Type: "store"}}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Watch != nil {
			if err := cfg.Watch.Validate(); err != nil {
				return nil, err
			}
		}
	}
	cfg.defaults()
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to snse.yaml")
	dbPath := flag.String("db", "", "store path (overrides config)")
	serveAddr := flag.String("serve", "", "serve the panel API on addr")
	watchURL := flag.String("watch", "", "watch a product page and record detections")
	extractRef := flag.String("extract", "", "print the product signal of a URL or HTML file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("snse: config", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}

	switch {
	case *extractRef != "":
		err = runExtract(ctx, cfg, *extractRef)
	case *watchURL != "":
		err = runWatch(ctx, logger, cfg, *watchURL)
	case *serveAddr != "" || *configPath != "":
		if *serveAddr != "" {
			cfg.Panel.Addr = *serveAddr
		}
		err = runServe(ctx, logger, cfg)
	default:
		fmt.Fprintln(os.Stderr, "usage: snse [-config snse.yaml] -serve <addr> | -watch <url> | -extract <url|file>")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("snse: fatal", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, logger *slog.Logger, path string) (*store.Store, error) {
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	migrated, err := st.Migrate(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	if migrated {
		logger.Info("snse: legacy wardrobe migrated", "db", path)
	}
	return st, nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *fileConfig) error {
	st, err := openStore(ctx, logger, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := panel.NewFromSettings(st, cfg.Panel, logger)
	if err != nil {
		return err
	}
	if err := p.Sync(ctx); err != nil {
		logger.Warn("snse: initial sync", "error", err)
	}

	// Detections written in this process arrive through Subscribe, those of
	// a separate watcher process through the version poll. Sync ignores
	// revisions that leave the stored detection unchanged.
	cancelSub := st.Subscribe(func(c store.Change) {
		if !store.IsDetectionKey(c.Key) {
			return
		}
		go func() {
			if err := p.Sync(ctx); err != nil {
				logger.Warn("snse: sync", "error", err)
			}
		}()
	})
	defer cancelSub()
	go watch.New(st.Version, watch.Options{
		Interval: cfg.Panel.StorePoll,
		Debounce: 50 * time.Millisecond,
		Logger:   logger,
	}).OnChange(ctx, p.Sync)

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "snse", Version: "1.0.0"}, nil)
	p.RegisterMCP(mcpSrv)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	mux.Handle("/", p.Handler())

	srv := &http.Server{
		Addr:              cfg.Panel.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("snse: panel listening", "addr", cfg.Panel.Addr, "db", cfg.DB)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runWatch(ctx context.Context, logger *slog.Logger, cfg *fileConfig, pageURL string) error {
	var st *store.Store
	for _, s := range cfg.Watch.Sinks {
		if s.Type == "store" {
			var err error
			if st, err = openStore(ctx, logger, cfg.DB); err != nil {
				return err
			}
			defer st.Close()
			break
		}
	}

	sinks, err := domwatch.BuildSinks(cfg.Watch.Sinks, st, os.Stdout, logger)
	if err != nil {
		return err
	}

	page, err := domwatch.OpenPage(ctx, cfg.Watch, pageURL, logger)
	if err != nil {
		return err
	}
	defer page.Close()

	w := domwatch.New(page, cfg.Watch, logger, sinks...)
	defer w.Close()

	err = w.Run(ctx)
	switch {
	case errors.Is(err, domwatch.ErrProductNotFound):
		logger.Warn("snse: no product on page", "url", pageURL)
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func runExtract(ctx context.Context, cfg *fileConfig, ref string) error {
	opts := extract.Options{
		TitleSelectors: cfg.Watch.Extract.TitleSelectors,
		Containers:     cfg.Watch.Extract.Containers,
	}

	var raw []byte
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		watchCfg := *cfg.Watch
		watchCfg.StealthLevel = domwatch.StealthHTTP
		page, err := domwatch.OpenPage(ctx, &watchCfg, ref, slog.Default())
		if err != nil {
			return err
		}
		defer page.Close()
		if raw, err = page.HTML(ctx); err != nil {
			return err
		}
		opts.BaseURL = ref
	} else {
		var err error
		if raw, err = os.ReadFile(ref); err != nil {
			return err
		}
	}

	sig, err := extract.ExtractHTML(raw, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(mutation.Detection{
		Type:     mutation.TypeProductDetected,
		Title:    sig.Title,
		ImageRef: sig.ImageRef,
		PageURL:  opts.BaseURL,
	})
}
