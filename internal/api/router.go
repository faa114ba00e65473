package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/nodeql/internal/nodeservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *nodeservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Queries.
	r.Post("/query", h.QueryBatch)
	r.Post("/query/{type}", h.Query)
	r.Post("/query/{type}/one", h.FindOne)

	// Schema.
	r.Get("/types", h.ListTypes)
	r.Get("/types/{type}/fields", h.ListFields)

	// Nodes.
	r.Get("/nodes/{id}", h.GetNode)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
