// Package api exposes the media library over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// NewRouter mounts the category and video handlers under /api/v1.
func NewRouter(service simplemedia.Service) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/categories", NewCategoryHandler(service).Routes())
		r.Mount("/videos", NewVideoHandler(service).Routes())
	})

	return r
}
