package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced on writes.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(UserMiddleware)

	r.Get("/prompts", h.ListPrompts)
	r.Get("/prompts/{slug}", h.GetPrompt)
	r.Get("/prompts/{slug}/versions", h.ListVersions)
	r.Get("/prompts/{slug}/diff", h.GetDiff)
	r.Get("/search", h.Search)

	// Writes open change requests on the remote and need credentials.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))
		r.Post("/prompts", h.CreatePrompt)
		r.Put("/prompts/{slug}", h.UpdatePrompt)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
