package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outliner/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group;
// ?document=<name> narrows the stream to one document.
//
// Document names containing slashes must be sent with the slashes encoded
// as %2F.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Library.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Route("/documents/{name}", func(r chi.Router) {
		r.Get("/", h.GetDocument)
		r.Patch("/", h.RenameDocument)
		r.Delete("/", h.DeleteDocument)
		r.Get("/view", h.ViewDocument)
		r.Post("/commands", h.ApplyCommand)
		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Get("/export", h.ExportDocument)
	})

	// Import (multipart upload).
	r.Post("/import", h.ImportDocument)

	// Search and tags.
	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)
	r.Get("/tags/{tag}", h.ByTag)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
