package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/snse/kit"
)

func stack(h http.Handler) http.Handler {
	mws := APIStack(nil)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestSecurityHeaders(t *testing.T) {
	h := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestMaxJSONBody(t *testing.T) {
	var readErr error
	h := MaxJSONBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"too long"}`)))
	if readErr == nil {
		t.Fatal("expected read error past the limit")
	}
}

func TestRequestID(t *testing.T) {
	var gotID, gotTransport string
	h := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := kit.CallFrom(r.Context())
		gotID, gotTransport = call.RequestID, call.Transport
		if GetLogger(r.Context()) == nil {
			t.Error("nil logger")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.HasPrefix(gotID, "req_") {
		t.Errorf("generated ID: got %q, want req_ prefix", gotID)
	}
	if rec.Header().Get("X-Request-ID") != gotID {
		t.Errorf("header: got %q, want %q", rec.Header().Get("X-Request-ID"), gotID)
	}
	if gotTransport != "http" {
		t.Errorf("transport: got %q, want http", gotTransport)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if gotID != "abc" {
		t.Errorf("incoming ID: got %q, want abc", gotID)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { method = r.Method }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	if method != http.MethodGet {
		t.Fatalf("got %q, want GET", method)
	}
}
