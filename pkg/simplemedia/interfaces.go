package simplemedia

import (
	"context"
	"image"
	"io"
	"time"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Put stores the reader's bytes under key and returns the key the blob
	// is reachable by.
	Put(ctx context.Context, key string, reader io.Reader, mimeType string) (string, error)

	// Get opens the blob stored under key. Missing keys yield ErrBlobNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob stored under key. Missing keys yield ErrBlobNotFound.
	Delete(ctx context.Context, key string) error
}

// Repository defines the interface for category and video persistence
type Repository interface {
	// Category operations
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context, filter CategoryFilter) ([]*Category, error)
	UpdateCategory(ctx context.Context, category *Category) error
	DeleteCategory(ctx context.Context, id int64) error
	CountCategories(ctx context.Context) (int64, error)
	CategoryStats(ctx context.Context, id int64) (*CategoryStats, error)

	// Video operations
	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id int64) (*Video, error)
	ListVideos(ctx context.Context, filter VideoFilter) ([]*Video, error)
	UpdateVideo(ctx context.Context, video *Video) error
	DeleteVideo(ctx context.Context, id int64) error

	// UpdateVideoThumbnail writes only the thumbnail column of one video and
	// only while that column is empty. A video that already has a thumbnail
	// yields ErrThumbnailAttached.
	UpdateVideoThumbnail(ctx context.Context, id int64, thumbnail AssetRef) error

	// AssetKeyReferenced reports whether any asset field of any record holds
	// key, ignoring the record identified by exceptKind and exceptID. An
	// exceptID of zero ignores nothing.
	AssetKeyReferenced(ctx context.Context, key string, exceptKind RecordKind, exceptID int64) (bool, error)

	// SetVideoStatus writes only the status column of every listed video and
	// returns the number of rows that exist and were updated.
	SetVideoStatus(ctx context.Context, ids []int64, status VideoStatus) (int64, error)

	// IncrementViewCount adds one view and returns the new count.
	IncrementViewCount(ctx context.Context, id int64) (int64, error)

	CountVideosInCategory(ctx context.Context, categoryID int64) (int64, error)
	VideoStats(ctx context.Context) (*VideoStats, error)

	// ListVideosMissingThumbnail returns videos with a payload and no thumbnail.
	ListVideosMissingThumbnail(ctx context.Context, limit int) ([]*Video, error)
}

// Clip is an opened video payload.
type Clip interface {
	// Duration is the playable length of the clip; zero means no frames.
	Duration() time.Duration
	Close() error
}

// FrameExtractor decodes still frames out of video payloads.
type FrameExtractor interface {
	// OpenClip opens the payload behind asset.
	OpenClip(ctx context.Context, asset Asset) (Clip, error)

	// FrameAt returns the frame displayed at offset.
	FrameAt(ctx context.Context, clip Clip, offset time.Duration) (image.Image, error)
}

// ImageFormat names an encoded still image format.
type ImageFormat string

// Supported image formats.
const (
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatPNG  ImageFormat = "png"
)

// ImageEncoder compresses raw frames into still image bytes.
type ImageEncoder interface {
	Encode(img image.Image, format ImageFormat) ([]byte, error)
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	// AssetReclaimed is fired after a superseded or orphaned blob is deleted
	AssetReclaimed(ctx context.Context, event AssetReclaimedEvent) error

	// ThumbnailGenerated is fired after every generation attempt that was not skipped
	ThumbnailGenerated(ctx context.Context, videoID int64, result ThumbnailResult) error

	// RecordsDeleted is fired after one or more records are removed
	RecordsDeleted(ctx context.Context, kind RecordKind, ids []int64) error

	// StatusChanged is fired after a bulk status change
	StatusChanged(ctx context.Context, ids []int64, status VideoStatus, updated int64) error
}

// AssetReclaimedEvent describes one reclaimed blob.
type AssetReclaimedEvent struct {
	Kind     RecordKind `json:"kind"`
	RecordID int64      `json:"record_id"`
	Field    string     `json:"field"`
	Key      string     `json:"key"`
}
