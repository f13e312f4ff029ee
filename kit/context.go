package kit

import "context"

type callKey struct{}

// Call identifies how an endpoint was reached. Logging reads it.
type Call struct {
	Transport string // "http" or "mcp"
	RequestID string
}

// WithCall attaches c to ctx.
func WithCall(ctx context.Context, c Call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

// CallFrom returns the Call attached to ctx. Transport defaults to "http".
func CallFrom(ctx context.Context) Call {
	c, _ := ctx.Value(callKey{}).(Call)
	if c.Transport == "" {
		c.Transport = "http"
	}
	return c
}
