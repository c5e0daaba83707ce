package simplemedia

import "io"

// Request/Response DTOs

// CreateCategoryRequest contains parameters for creating a category.
// An empty Slug is derived from Name.
type CreateCategoryRequest struct {
	Name        string
	Slug        string
	Description string
	Image       AssetRef
}

// UpdateCategoryRequest contains parameters for updating a category.
// Nil fields keep their committed value. A non-nil absent Image clears the
// image and reclaims the previous blob.
type UpdateCategoryRequest struct {
	ID          int64
	Name        *string
	Slug        *string
	Description *string
	Image       *AssetRef
}

// CreateVideoRequest contains parameters for creating a video.
// An empty Slug is derived from Title and an empty Status means draft.
type CreateVideoRequest struct {
	Title       string
	Slug        string
	Description string
	Payload     AssetRef
	Thumbnail   AssetRef
	CategoryID  *int64
	Status      VideoStatus
	IsFavorite  bool
}

// UpdateVideoRequest contains parameters for updating a video.
// Nil fields keep their committed value. Replacing or clearing Payload or
// Thumbnail reclaims the previous blob.
type UpdateVideoRequest struct {
	ID            int64
	Title         *string
	Slug          *string
	Description   *string
	Payload       *AssetRef
	Thumbnail     *AssetRef
	CategoryID    *int64
	ClearCategory bool
	Status        *VideoStatus
	IsFavorite    *bool
}

// UploadAssetRequest carries the bytes of a new asset for one record field.
type UploadAssetRequest struct {
	RecordID int64
	FileName string
	MimeType string
	Reader   io.Reader
}

// VideoWriteResult is returned by every operation that persists a video. It
// carries the outcome of the thumbnail generation that followed the write.
type VideoWriteResult struct {
	Video     *Video          `json:"video"`
	Thumbnail ThumbnailResult `json:"thumbnail"`
}

// BulkStatusResult is returned by BulkChangeStatus.
type BulkStatusResult struct {
	UpdatedCount int64 `json:"updated_count"`
}

// BulkDeleteResult is returned by BulkDelete.
type BulkDeleteResult struct {
	DeletedCount int64 `json:"deleted_count"`
}

// RepairReport summarises one RepairThumbnails sweep.
type RepairReport struct {
	Scanned  int `json:"scanned"`
	Attached int `json:"attached"`
	Degraded int `json:"degraded"`
}
