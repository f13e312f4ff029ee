// Package domwatch watches a retail product page and emits a
// "product-detected" message whenever its (title, image) signal is first
// found or its image changes.
//
// A Watcher polls the page until the extractor yields a title, emits it,
// then follows DOM mutations (browser pages only) and re-extracts after a
// quiet period. Detections fan out to sinks: the shared store, stdout,
// a webhook or an in-process callback.
package domwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/snse/domwatch/internal/observer"
	"github.com/hazyhaar/snse/domwatch/internal/sink"
	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/extract"
)

// ErrProductNotFound is returned by Run when polling exhausted its retries
// without finding a product title.
var ErrProductNotFound = errors.New("domwatch: product not found")

// Detection is the message emitted to sinks.
type Detection = mutation.Detection

// Page is a loaded document the watcher can read and, optionally, follow.
type Page interface {
	URL() string
	HTML(ctx context.Context) ([]byte, error)
	// Mutations streams DOM mutation records until ctx is done. A nil
	// channel means the page cannot be watched.
	Mutations(ctx context.Context) (<-chan mutation.Record, error)
	Close() error
}

// Watcher runs detection for a single page.
type Watcher struct {
	page   Page
	cfg    Config
	sinkR  *sink.Router
	logger *slog.Logger
	now    func() time.Time

	seq uint64
}

// New creates a Watcher for page. A nil cfg uses DefaultConfig.
func New(page Page, cfg *Config, logger *slog.Logger, sinks ...Sink) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.defaults()
	return &Watcher{
		page:   page,
		cfg:    c,
		sinkR:  sink.NewRouter(logger, sinks...),
		logger: logger,
		now:    time.Now,
	}
}

// Run polls for the product, emits it, then watches for image changes.
// It returns ErrProductNotFound when polling is exhausted, nil when the
// page cannot be watched or its mutation stream closes, and ctx.Err()
// when cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	first, err := w.poll(ctx)
	if err != nil {
		return err
	}
	w.emit(ctx, first)

	records, err := w.page.Mutations(ctx)
	if err != nil {
		return fmt.Errorf("domwatch: mutations: %w", err)
	}
	if records == nil {
		w.logger.Info("domwatch: page does not support watching", "url", w.page.URL())
		return nil
	}

	obs := observer.New(records, observer.Config{
		Quiet:  w.cfg.Debounce.Quiet,
		Logger: w.logger,
	})

	lastImage := first.ImageRef
	err = obs.Run(ctx, func(ctx context.Context) {
		next, err := w.extractOnce(ctx)
		if err != nil {
			w.logger.Warn("domwatch: re-extract failed", "url", w.page.URL(), "error", err)
			return
		}
		if next.ImageRef == lastImage {
			return
		}
		lastImage = next.ImageRef
		w.emit(ctx, extract.Signal{Title: first.Title, ImageRef: next.ImageRef})
	})

	st := obs.Stats()
	w.logger.Debug("domwatch: watch ended",
		"url", w.page.URL(), "records", st.Records, "relevant", st.Relevant, "fires", st.Fires)
	return err
}

// Close releases the sinks. The page is owned by the caller.
func (w *Watcher) Close() error {
	return w.sinkR.Close()
}

func (w *Watcher) poll(ctx context.Context) (extract.Signal, error) {
	attempts := 1 + max(w.cfg.Poll.Retries, 0)
	for i := 0; i < attempts; i++ {
		if i > 0 {
			t := time.NewTimer(w.cfg.Poll.Interval)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return extract.Signal{}, ctx.Err()
			}
		}
		sig, err := w.extractOnce(ctx)
		if err != nil {
			w.logger.Warn("domwatch: extract failed", "url", w.page.URL(), "attempt", i+1, "error", err)
			continue
		}
		if sig.Found() {
			return sig, nil
		}
	}
	return extract.Signal{}, ErrProductNotFound
}

func (w *Watcher) extractOnce(ctx context.Context) (extract.Signal, error) {
	raw, err := w.page.HTML(ctx)
	if err != nil {
		return extract.Signal{}, err
	}
	return extract.ExtractHTML(raw, extract.Options{
		BaseURL:        w.page.URL(),
		TitleSelectors: w.cfg.Extract.TitleSelectors,
		Containers:     w.cfg.Extract.Containers,
	})
}

func (w *Watcher) emit(ctx context.Context, sig extract.Signal) {
	w.seq++
	d := Detection{
		Type:      mutation.TypeProductDetected,
		Title:     sig.Title,
		ImageRef:  sig.ImageRef,
		PageURL:   w.page.URL(),
		Seq:       w.seq,
		Timestamp: w.now().UnixMilli(),
	}
	w.logger.Info("domwatch: product detected",
		"url", d.PageURL, "title", d.Title, "image", d.ImageRef, "seq", d.Seq)
	// Router logs per-sink failures; emission is best-effort.
	_ = w.sinkR.Send(ctx, d)
}
