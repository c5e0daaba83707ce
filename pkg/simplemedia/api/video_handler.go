package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// VideoHandler handles HTTP requests for videos
type VideoHandler struct {
	service simplemedia.Service
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(service simplemedia.Service) *VideoHandler {
	return &VideoHandler{service: service}
}

// Routes returns the routes for videos
func (h *VideoHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListVideos)
	r.Post("/", h.CreateVideo)
	r.Get("/stats", h.GetStats)
	r.Post("/bulk-status", h.BulkChangeStatus)
	r.Delete("/bulk", h.BulkDelete)
	r.Post("/repair-thumbnails", h.RepairThumbnails)

	r.Get("/{id}", h.GetVideo)
	r.Put("/{id}", h.UpdateVideo)
	r.Delete("/{id}", h.DeleteVideo)
	r.Post("/{id}/view", h.IncrementView)

	r.Put("/{id}/payload", h.UploadPayload)
	r.Get("/{id}/payload", h.DownloadPayload)
	r.Put("/{id}/thumbnail", h.UploadThumbnail)
	r.Get("/{id}/thumbnail", h.DownloadThumbnail)
	r.Post("/{id}/thumbnail/generate", h.GenerateThumbnail)

	return r
}

// VideoRequest is the request body for creating or updating a video.
// Omitted fields keep their value on update; an empty payload or thumbnail
// clears it.
type VideoRequest struct {
	Title         *string                  `json:"title"`
	Slug          *string                  `json:"slug"`
	Description   *string                  `json:"description"`
	Payload       *simplemedia.AssetRef    `json:"payload"`
	Thumbnail     *simplemedia.AssetRef    `json:"thumbnail"`
	CategoryID    *int64                   `json:"category_id"`
	ClearCategory bool                     `json:"clear_category"`
	Status        *simplemedia.VideoStatus `json:"status"`
	IsFavorite    *bool                    `json:"is_favorite"`
}

// BulkStatusRequest is the request body for a bulk status change
type BulkStatusRequest struct {
	VideoIDs []int64 `json:"video_ids"`
	Status   string  `json:"status"`
}

// BulkDeleteRequest is the request body for a bulk delete
type BulkDeleteRequest struct {
	VideoIDs []int64 `json:"video_ids"`
}

// ViewResponse is returned after a view is counted
type ViewResponse struct {
	ViewCount int64 `json:"view_count"`
}

// ListVideos lists videos matching the query filters
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	filter, err := videoFilter(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	videos, err := h.service.ListVideos(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if videos == nil {
		videos = []*simplemedia.Video{}
	}
	render.JSON(w, r, videos)
}

// CreateVideo creates a video. The response carries the thumbnail outcome.
func (h *VideoHandler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req VideoRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	create := simplemedia.CreateVideoRequest{
		Title:       deref(req.Title),
		Slug:        deref(req.Slug),
		Description: deref(req.Description),
		CategoryID:  req.CategoryID,
	}
	if req.Payload != nil {
		create.Payload = *req.Payload
	}
	if req.Thumbnail != nil {
		create.Thumbnail = *req.Thumbnail
	}
	if req.Status != nil {
		create.Status = *req.Status
	}
	if req.IsFavorite != nil {
		create.IsFavorite = *req.IsFavorite
	}

	result, err := h.service.CreateVideo(r.Context(), create)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Video created", "video_id", result.Video.ID, "thumbnail", result.Thumbnail.State)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// GetVideo returns one video
func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	video, err := h.service.GetVideo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, video)
}

// UpdateVideo applies a partial update
func (h *VideoHandler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req VideoRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	result, err := h.service.UpdateVideo(r.Context(), simplemedia.UpdateVideoRequest{
		ID:            id,
		Title:         req.Title,
		Slug:          req.Slug,
		Description:   req.Description,
		Payload:       req.Payload,
		Thumbnail:     req.Thumbnail,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Status:        req.Status,
		IsFavorite:    req.IsFavorite,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// DeleteVideo deletes a video and reclaims its assets
func (h *VideoHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := h.service.DeleteVideo(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Video deleted", "video_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// IncrementView counts one view
func (h *VideoHandler) IncrementView(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	views, err := h.service.IncrementViewCount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ViewResponse{ViewCount: views})
}

// GetStats returns library-wide video counts
func (h *VideoHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetVideoStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// BulkChangeStatus sets the status of many videos
func (h *VideoHandler) BulkChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if len(req.VideoIDs) > maxBulkIDs {
		badRequest(w, r, "too many video ids")
		return
	}

	updated, err := h.service.BulkChangeStatus(r.Context(), req.VideoIDs, simplemedia.VideoStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, simplemedia.BulkStatusResult{UpdatedCount: updated})
}

// BulkDelete deletes many videos. Videos that could not be removed are
// logged by the service; the response reports how many were deleted.
func (h *VideoHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if len(req.VideoIDs) > maxBulkIDs {
		badRequest(w, r, "too many video ids")
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), req.VideoIDs)
	if err != nil {
		slog.Warn("Bulk delete finished with failures", "deleted", deleted, "error", err)
	}
	render.JSON(w, r, simplemedia.BulkDeleteResult{DeletedCount: deleted})
}

// RepairThumbnails retries generation for videos that have none
func (h *VideoHandler) RepairThumbnails(w http.ResponseWriter, r *http.Request) {
	limit := maxPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		filter, err := videoFilter(r)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		limit = filter.Limit
	}
	report, err := h.service.RepairThumbnails(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// UploadPayload replaces the video payload with the uploaded file
func (h *VideoHandler) UploadPayload(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, simplemedia.MaxPayloadBytes, h.service.UploadVideoPayload)
}

// UploadThumbnail replaces the video thumbnail with the uploaded file
func (h *VideoHandler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, simplemedia.MaxImageBytes, h.service.UploadVideoThumbnail)
}

func (h *VideoHandler) upload(w http.ResponseWriter, r *http.Request, maxBytes int64,
	store func(ctx context.Context, req simplemedia.UploadAssetRequest) (*simplemedia.VideoWriteResult, error)) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	req, file, err := uploadFile(w, r, id, maxBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	result, err := store(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// DownloadPayload streams the video payload
func (h *VideoHandler) DownloadPayload(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	streamAsset(w, r, h.service, video.Payload, contentTypeFor(video.Payload, "application/octet-stream"))
}

// DownloadThumbnail streams the video thumbnail
func (h *VideoHandler) DownloadThumbnail(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	streamAsset(w, r, h.service, video.Thumbnail, contentTypeFor(video.Thumbnail, "image/jpeg"))
}

// GenerateThumbnail re-runs thumbnail generation for one video
func (h *VideoHandler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	result, err := h.service.GenerateThumbnail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *VideoHandler) loadVideo(w http.ResponseWriter, r *http.Request) (*simplemedia.Video, bool) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	video, err := h.service.GetVideo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return video, true
}
