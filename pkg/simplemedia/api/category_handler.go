package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	service simplemedia.Service
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(service simplemedia.Service) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// Routes returns the routes for categories
func (h *CategoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCategories)
	r.Post("/", h.CreateCategory)
	r.Get("/{id}", h.GetCategory)
	r.Put("/{id}", h.UpdateCategory)
	r.Delete("/{id}", h.DeleteCategory)
	r.Get("/{id}/stats", h.GetCategoryStats)

	r.Put("/{id}/image", h.UploadImage)
	r.Get("/{id}/image", h.DownloadImage)

	return r
}

// CategoryRequest is the request body for creating or updating a category.
// Omitted fields keep their value on update; an empty image clears it.
type CategoryRequest struct {
	Name        *string               `json:"name"`
	Slug        *string               `json:"slug"`
	Description *string               `json:"description"`
	Image       *simplemedia.AssetRef `json:"image"`
}

// ListCategories lists categories, optionally filtered by slug or search term
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), simplemedia.CategoryFilter{
		Slug:   r.URL.Query().Get("slug"),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []*simplemedia.Category{}
	}
	render.JSON(w, r, categories)
}

// CreateCategory creates a new category
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	create := simplemedia.CreateCategoryRequest{
		Name:        deref(req.Name),
		Slug:        deref(req.Slug),
		Description: deref(req.Description),
	}
	if req.Image != nil {
		create.Image = *req.Image
	}

	category, err := h.service.CreateCategory(r.Context(), create)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Category created", "category_id", category.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, category)
}

// GetCategory returns one category
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, category)
}

// UpdateCategory applies a partial update
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), simplemedia.UpdateCategoryRequest{
		ID:          id,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, category)
}

// DeleteCategory deletes a category that no video references
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Category deleted", "category_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetCategoryStats returns video counts for one category
func (h *CategoryHandler) GetCategoryStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	stats, err := h.service.GetCategoryStats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// UploadImage replaces the category image with the uploaded file
func (h *CategoryHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	req, file, err := uploadFile(w, r, id, simplemedia.MaxImageBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	category, err := h.service.UploadCategoryImage(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, category)
}

// DownloadImage streams the category image
func (h *CategoryHandler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	streamAsset(w, r, h.service, category.Image, contentTypeFor(category.Image, "image/jpeg"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
