// Package observer turns a stream of DOM mutation records into debounced
// re-extraction callbacks.
package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/snse/domwatch/mutation"
)

// Config for creating an Observer.
type Config struct {
	// Quiet is the debounce period after the last relevant record. Default: 500ms.
	Quiet time.Duration
	// NewTimer overrides the clock. Default: RealTimer.
	NewTimer NewTimerFunc
	Logger   *slog.Logger
}

// Observer consumes mutation records for a single page.
type Observer struct {
	records <-chan mutation.Record
	deb     *debouncer
	logger  *slog.Logger
	stats   Stats
}

// Stats counts what the observer saw.
type Stats struct {
	Records  int // all records received
	Relevant int // records that armed the debouncer
	Fires    int // quiet periods that elapsed
}

// New creates an Observer reading records.
func New(records <-chan mutation.Record, cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Observer{
		records: records,
		deb:     newDebouncer(cfg.Quiet, cfg.NewTimer),
		logger:  cfg.Logger,
	}
}

// Run loops until ctx is cancelled or the record stream closes. Each
// relevant record re-arms the quiet period; when it elapses onQuiet runs
// once, on the Run goroutine. A pending quiet period is discarded when
// the stream closes.
func (o *Observer) Run(ctx context.Context, onQuiet func(context.Context)) error {
	defer o.deb.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-o.records:
			if !ok {
				o.logger.Debug("observer: record stream closed")
				return nil
			}
			o.stats.Records++
			if !rec.Relevant() {
				continue
			}
			o.stats.Relevant++
			o.deb.arm()

		case <-o.deb.timerC():
			o.deb.fired()
			o.stats.Fires++
			onQuiet(ctx)
		}
	}
}

// Stats returns the counters. Only meaningful after Run returned.
func (o *Observer) Stats() Stats { return o.stats }
