package shield

import "net/http"

// HeadToGet serves HEAD through GET routes (health probes hit /api/v1/state
// with HEAD). net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
