package sink

import (
	"context"

	"github.com/hazyhaar/snse/domwatch/mutation"
)

// DetectionFunc is called for each detection (in-process, zero serialisation).
type DetectionFunc func(ctx context.Context, d mutation.Detection) error

// Callback delivers detections via a Go function call, for a watcher and
// panel living in the same binary.
type Callback struct {
	fn DetectionFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn DetectionFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, d mutation.Detection) error {
	if c.fn != nil {
		return c.fn(ctx, d)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
