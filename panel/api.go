package panel

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/outfit"
	"github.com/hazyhaar/snse/shield"
)

type itemRef struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

type saveResponse struct {
	Item  outfit.Item `json:"item"`
	Added bool        `json:"added"`
}

type generateResponse struct {
	Ref   string `json:"ref"`
	State State  `json:"state"`
}

// Handler returns the panel HTTP API, mounted under /api/v1.
func (c *Controller) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(c.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
			var d mutation.Detection
			if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
				writeError(w, r, ErrBadMessage)
				return
			}
			item, err := c.HandleDetection(r.Context(), d)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, item)
		})

		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, c.State())
		})

		r.Get("/display", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, c.Display(r.Context()))
		})

		r.Route("/wardrobe", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				items, err := c.Wardrobe(r.Context())
				if err != nil {
					writeError(w, r, err)
					return
				}
				if items == nil {
					items = outfit.Wardrobe{}
				}
				writeJSON(w, http.StatusOK, items)
			})
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				item, added, err := c.Save(r.Context())
				if err != nil {
					writeError(w, r, err)
					return
				}
				code := http.StatusOK
				if added {
					code = http.StatusCreated
				}
				writeJSON(w, code, saveResponse{Item: item, Added: added})
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				var ref itemRef
				if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
					return
				}
				item, err := c.Remove(r.Context(), ref.Title, ref.Image)
				if err != nil {
					writeError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, item)
			})
			r.Get("/matches", func(w http.ResponseWriter, r *http.Request) {
				items, err := c.ClosetMatches(r.Context())
				if err != nil {
					writeError(w, r, err)
					return
				}
				if items == nil {
					items = []outfit.Item{}
				}
				writeJSON(w, http.StatusOK, items)
			})
		})

		r.Route("/outfit", func(r chi.Router) {
			r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
				st, err := c.StartOutfit()
				if err != nil {
					writeError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, st)
			})
			r.Post("/toggle", func(w http.ResponseWriter, r *http.Request) {
				var ref itemRef
				if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
					return
				}
				st, err := c.Toggle(r.Context(), ref.Title, ref.Image)
				if err != nil {
					writeError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, st)
			})
			r.Post("/exit", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, c.ExitOutfit())
			})
			r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
				ref, err := c.Generate(r.Context())
				if err != nil {
					writeError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, generateResponse{Ref: ref, State: c.State()})
			})
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				p, err := c.Profile(r.Context())
				if err != nil {
					writeError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, p.Redacted())
			})
			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				var patch ProfilePatch
				if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
					return
				}
				p, err := c.UpdateProfile(r.Context(), patch)
				if err != nil {
					writeError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, p.Redacted())
			})
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err with the user-facing message and its status.
// Server-side failures are logged with the request's logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Warn("panel: request failed", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": Describe(err)})
}
