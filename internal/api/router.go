package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/paperlink/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Editor commands run against vault notes.
	r.Post("/commands/render", h.Render)
	r.Post("/commands/insert", h.Insert)

	// Placeholder registry.
	r.Put("/documents/{id}/placeholder", h.UpsertPlaceholder)
	r.Get("/placeholders", h.ListPlaceholders)
	r.Get("/placeholders/{filename}", h.GetPlaceholder)
	r.Get("/placeholders/{filename}/embeds", h.Embeds)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.UpdateSettings)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
