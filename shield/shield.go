// Package shield is the HTTP middleware stack of the panel API.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// MaxJSONBytes caps API request bodies. Detection messages carry titles and
// image URLs, never image payloads.
const MaxJSONBytes int64 = 64 << 10

// APIStack returns the middleware applied to every panel route, outermost
// first: HeadToGet, SecurityHeaders, MaxJSONBody, RequestID.
func APIStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(MaxJSONBytes),
		RequestID(logger),
	}
}
