package simplemedia

import (
	"fmt"
	"strings"
	"time"
)

// RecordKind names the variant of a content record.
type RecordKind string

// Record kind constants (typed).
const (
	RecordKindCategory RecordKind = "category"
	RecordKindVideo    RecordKind = "video"
)

// VideoStatus is the domain type for video publication states.
type VideoStatus string

// Video status constants (typed).
const (
	VideoStatusDraft     VideoStatus = "draft"
	VideoStatusPublished VideoStatus = "published"
	VideoStatusArchived  VideoStatus = "archived"
)

// IsValid reports whether s is one of draft, published or archived.
func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoStatusDraft, VideoStatusPublished, VideoStatusArchived:
		return true
	}
	return false
}

// ParseVideoStatus converts raw into a VideoStatus, rejecting unknown values.
func ParseVideoStatus(raw string) (VideoStatus, error) {
	s := VideoStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Record is a content record that owns asset fields.
type Record interface {
	RecordID() int64
	RecordKind() RecordKind
	// AssetFields lists every asset slot of the record, occupied or not.
	AssetFields() []AssetField
}

// Category groups videos and carries an optional image.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Image       AssetRef  `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Category) RecordID() int64        { return c.ID }
func (c *Category) RecordKind() RecordKind { return RecordKindCategory }

func (c *Category) AssetFields() []AssetField {
	return []AssetField{{Name: FieldImage, Ref: c.Image}}
}

// Video is a video record with a primary payload and a derived thumbnail.
type Video struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description,omitempty"`
	Payload     AssetRef    `json:"payload"`
	Thumbnail   AssetRef    `json:"thumbnail"`
	CategoryID  *int64      `json:"category_id,omitempty"`
	Status      VideoStatus `json:"status"`
	IsFavorite  bool        `json:"is_favorite"`
	ViewCount   int64       `json:"view_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
}

func (v *Video) RecordID() int64        { return v.ID }
func (v *Video) RecordKind() RecordKind { return RecordKindVideo }

func (v *Video) AssetFields() []AssetField {
	return []AssetField{
		{Name: FieldPayload, Ref: v.Payload},
		{Name: FieldThumbnail, Ref: v.Thumbnail},
	}
}

// NeedsThumbnail reports whether a thumbnail should be derived for v.
func (v *Video) NeedsThumbnail() bool {
	return v.Payload.Present() && !v.Thumbnail.Present()
}

// ThumbnailState is the outcome of one thumbnail generation attempt.
type ThumbnailState string

const (
	// ThumbnailSkipped means the precondition did not hold: no payload, or a
	// thumbnail was already attached.
	ThumbnailSkipped ThumbnailState = "skipped"
	// ThumbnailAttached means a thumbnail was stored and written to the record.
	ThumbnailAttached ThumbnailState = "attached"
	// ThumbnailDegraded means generation failed and the record has no thumbnail.
	ThumbnailDegraded ThumbnailState = "degraded"
)

// ThumbnailResult reports what the generator did for one persisted write.
type ThumbnailResult struct {
	State  ThumbnailState `json:"state"`
	Key    string         `json:"key,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Degraded reports whether generation failed.
func (r ThumbnailResult) Degraded() bool {
	return r.State == ThumbnailDegraded
}

// VideoOrder names a supported list ordering. A leading "-" sorts descending.
type VideoOrder string

// Supported orderings.
const (
	OrderCreatedDesc   VideoOrder = "-created_at"
	OrderCreatedAsc    VideoOrder = "created_at"
	OrderTitleAsc      VideoOrder = "title"
	OrderTitleDesc     VideoOrder = "-title"
	OrderViewCountDesc VideoOrder = "-view_count"
	OrderViewCountAsc  VideoOrder = "view_count"
)

// IsValid reports whether o is a supported ordering.
func (o VideoOrder) IsValid() bool {
	switch o {
	case OrderCreatedDesc, OrderCreatedAsc, OrderTitleAsc, OrderTitleDesc, OrderViewCountDesc, OrderViewCountAsc:
		return true
	}
	return false
}

// VideoFilter narrows ListVideos. Zero fields do not filter.
type VideoFilter struct {
	CategoryID    *int64
	Status        VideoStatus
	IsFavorite    *bool
	Search        string // case-insensitive match on title or description
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	OrderBy       VideoOrder // defaults to OrderCreatedDesc
	Limit         int
	Offset        int
}

// CategoryFilter narrows ListCategories.
type CategoryFilter struct {
	Slug   string
	Search string // case-insensitive match on name or description
}

// VideoStats summarises the video table.
type VideoStats struct {
	TotalVideos     int64 `json:"total_videos"`
	PublishedVideos int64 `json:"published_videos"`
	DraftVideos     int64 `json:"draft_videos"`
	ArchivedVideos  int64 `json:"archived_videos"`
	FavoriteVideos  int64 `json:"favorite_videos"`
	TotalViews      int64 `json:"total_views"`
	CategoriesCount int64 `json:"categories_count"`
}

// CategoryStats summarises the videos of one category.
type CategoryStats struct {
	CategoryID      int64 `json:"category_id"`
	TotalVideos     int64 `json:"total_videos"`
	PublishedVideos int64 `json:"published_videos"`
	DraftVideos     int64 `json:"draft_videos"`
	FavoriteVideos  int64 `json:"favorite_videos"`
	TotalViews      int64 `json:"total_views"`
}
