package domwatch

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/snse/domwatch/internal/sink"
	"github.com/hazyhaar/snse/store"
)

// Sink is the output interface for detections.
type Sink = sink.Sink

// DetectionFunc is called for each detection by a callback sink.
type DetectionFunc = sink.DetectionFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn DetectionFunc) Sink {
	return sink.NewCallback(fn)
}

// NewStoreSink creates a sink writing the last detected product to st.
func NewStoreSink(st *store.Store) Sink {
	return sink.NewStore(st)
}

// BuildSinks instantiates the configured sinks. st may be nil when no
// store sink is configured.
func BuildSinks(cfgs []SinkConfig, st *store.Store, w io.Writer, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for _, c := range cfgs {
		switch c.Type {
		case "store":
			if st == nil {
				return nil, fmt.Errorf("domwatch: store sink needs a store")
			}
			out = append(out, NewStoreSink(st))
		case "stdout":
			out = append(out, NewStdoutSink(w))
		case "webhook":
			if c.URL == "" {
				return nil, fmt.Errorf("domwatch: webhook sink needs a url")
			}
			out = append(out, NewWebhookSink(c.URL, logger))
		default:
			return nil, fmt.Errorf("domwatch: unknown sink type %q", c.Type)
		}
	}
	return out, nil
}
