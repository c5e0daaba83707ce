package simplemedia

import (
	"context"
	"io"
)

// Service is the main interface for the media library. It is the content
// store for categories and videos and runs the registered lifecycle hooks
// around every record mutation.
type Service interface {
	// Category operations
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context, filter CategoryFilter) ([]*Category, error)
	UpdateCategory(ctx context.Context, req UpdateCategoryRequest) (*Category, error)
	// DeleteCategory fails with ErrCategoryInUse while videos reference the category.
	DeleteCategory(ctx context.Context, id int64) error
	GetCategoryStats(ctx context.Context, id int64) (*CategoryStats, error)
	UploadCategoryImage(ctx context.Context, req UploadAssetRequest) (*Category, error)

	// Video operations
	CreateVideo(ctx context.Context, req CreateVideoRequest) (*VideoWriteResult, error)
	GetVideo(ctx context.Context, id int64) (*Video, error)
	ListVideos(ctx context.Context, filter VideoFilter) ([]*Video, error)
	UpdateVideo(ctx context.Context, req UpdateVideoRequest) (*VideoWriteResult, error)
	DeleteVideo(ctx context.Context, id int64) error
	IncrementViewCount(ctx context.Context, id int64) (int64, error)
	GetVideoStats(ctx context.Context) (*VideoStats, error)
	UploadVideoPayload(ctx context.Context, req UploadAssetRequest) (*VideoWriteResult, error)
	UploadVideoThumbnail(ctx context.Context, req UploadAssetRequest) (*VideoWriteResult, error)

	// OpenAsset streams the blob behind ref.
	OpenAsset(ctx context.Context, ref AssetRef) (io.ReadCloser, error)

	// Asset lifecycle operations

	// GenerateThumbnail re-runs the thumbnail precondition for one video.
	GenerateThumbnail(ctx context.Context, videoID int64) (*VideoWriteResult, error)
	// RepairThumbnails re-runs generation for up to limit videos that have a
	// payload and no thumbnail.
	RepairThumbnails(ctx context.Context, limit int) (*RepairReport, error)
	// BulkChangeStatus sets only the status of the listed videos. Unknown
	// statuses are rejected with ErrInvalidStatus before any video is touched.
	BulkChangeStatus(ctx context.Context, ids []int64, status VideoStatus) (int64, error)
	// BulkDelete reclaims every asset of each listed video, then removes it.
	BulkDelete(ctx context.Context, ids []int64) (int64, error)
}
