package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/labdesk/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Stateless preview.
	r.Post("/extract", h.Extract)

	// Stored documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.Upload)
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.Replace)
	r.Delete("/documents/*", h.DeleteDocument)

	// Search.
	r.Get("/search", h.Search)

	// Grading.
	r.Post("/grade", h.Grade)
	r.Post("/projects/evaluate", h.EvaluateProject)
	r.Get("/submissions", h.ListSubmissions)
	r.Get("/submissions/remote", h.RemoteSubmissions)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
