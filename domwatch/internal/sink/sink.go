// Package sink defines output backends for product detections.
package sink

import (
	"context"

	"github.com/hazyhaar/snse/domwatch/mutation"
)

// Sink is the output interface. Implementations deliver detections to
// different backends (store, stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, d mutation.Detection) error
	Close() error
}
