package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Repository implements simplemedia.Repository using in-memory storage
type Repository struct {
	mu             sync.RWMutex
	categories     map[int64]*simplemedia.Category
	videos         map[int64]*simplemedia.Video
	nextCategoryID int64
	nextVideoID    int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		categories: make(map[int64]*simplemedia.Category),
		videos:     make(map[int64]*simplemedia.Video),
	}
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *simplemedia.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.categorySlugTaken(category.Slug, 0) {
		return simplemedia.ErrSlugTaken
	}
	r.nextCategoryID++
	category.ID = r.nextCategoryID

	categoryCopy := *category
	r.categories[category.ID] = &categoryCopy
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (*simplemedia.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, exists := r.categories[id]
	if !exists {
		return nil, simplemedia.ErrCategoryNotFound
	}
	categoryCopy := *category
	return &categoryCopy, nil
}

func (r *Repository) ListCategories(ctx context.Context, filter simplemedia.CategoryFilter) ([]*simplemedia.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var result []*simplemedia.Category
	for _, category := range r.categories {
		if filter.Slug != "" && category.Slug != filter.Slug {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(category.Name), search) &&
			!strings.Contains(strings.ToLower(category.Description), search) {
			continue
		}
		categoryCopy := *category
		result = append(result, &categoryCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, category *simplemedia.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categories[category.ID]; !exists {
		return simplemedia.ErrCategoryNotFound
	}
	if r.categorySlugTaken(category.Slug, category.ID) {
		return simplemedia.ErrSlugTaken
	}
	categoryCopy := *category
	r.categories[category.ID] = &categoryCopy
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categories[id]; !exists {
		return simplemedia.ErrCategoryNotFound
	}
	delete(r.categories, id)
	for _, video := range r.videos {
		if video.CategoryID != nil && *video.CategoryID == id {
			video.CategoryID = nil
		}
	}
	return nil
}

func (r *Repository) CountCategories(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.categories)), nil
}

func (r *Repository) CategoryStats(ctx context.Context, id int64) (*simplemedia.CategoryStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &simplemedia.CategoryStats{CategoryID: id}
	for _, video := range r.videos {
		if video.CategoryID == nil || *video.CategoryID != id {
			continue
		}
		stats.TotalVideos++
		stats.TotalViews += video.ViewCount
		if video.IsFavorite {
			stats.FavoriteVideos++
		}
		switch video.Status {
		case simplemedia.VideoStatusPublished:
			stats.PublishedVideos++
		case simplemedia.VideoStatusDraft:
			stats.DraftVideos++
		}
	}
	return stats, nil
}

// Video operations

func (r *Repository) CreateVideo(ctx context.Context, video *simplemedia.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.videoSlugTaken(video.Slug, 0) {
		return simplemedia.ErrSlugTaken
	}
	r.nextVideoID++
	video.ID = r.nextVideoID

	r.videos[video.ID] = copyVideo(video)
	return nil
}

func (r *Repository) GetVideo(ctx context.Context, id int64) (*simplemedia.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, exists := r.videos[id]
	if !exists {
		return nil, simplemedia.ErrVideoNotFound
	}
	return copyVideo(video), nil
}

func (r *Repository) ListVideos(ctx context.Context, filter simplemedia.VideoFilter) ([]*simplemedia.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplemedia.Video
	for _, video := range r.videos {
		if matchesFilter(video, filter) {
			result = append(result, copyVideo(video))
		}
	}

	sortVideos(result, filter.OrderBy)
	return paginate(result, filter.Offset, filter.Limit), nil
}

func (r *Repository) UpdateVideo(ctx context.Context, video *simplemedia.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[video.ID]; !exists {
		return simplemedia.ErrVideoNotFound
	}
	if r.videoSlugTaken(video.Slug, video.ID) {
		return simplemedia.ErrSlugTaken
	}
	r.videos[video.ID] = copyVideo(video)
	return nil
}

func (r *Repository) DeleteVideo(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[id]; !exists {
		return simplemedia.ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}

func (r *Repository) UpdateVideoThumbnail(ctx context.Context, id int64, thumbnail simplemedia.AssetRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	video, exists := r.videos[id]
	if !exists {
		return simplemedia.ErrVideoNotFound
	}
	if video.Thumbnail.Present() {
		return simplemedia.ErrThumbnailAttached
	}
	video.Thumbnail = thumbnail
	return nil
}

func (r *Repository) AssetKeyReferenced(ctx context.Context, key string, exceptKind simplemedia.RecordKind, exceptID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if key == "" {
		return false, nil
	}
	for id, category := range r.categories {
		if exceptKind == simplemedia.RecordKindCategory && id == exceptID {
			continue
		}
		if category.Image.Key == key {
			return true, nil
		}
	}
	for id, video := range r.videos {
		if exceptKind == simplemedia.RecordKindVideo && id == exceptID {
			continue
		}
		if video.Payload.Key == key || video.Thumbnail.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) SetVideoStatus(ctx context.Context, ids []int64, status simplemedia.VideoStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if video, exists := r.videos[id]; exists {
			video.Status = status
			updated++
		}
	}
	return updated, nil
}

func (r *Repository) IncrementViewCount(ctx context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	video, exists := r.videos[id]
	if !exists {
		return 0, simplemedia.ErrVideoNotFound
	}
	video.ViewCount++
	return video.ViewCount, nil
}

func (r *Repository) CountVideosInCategory(ctx context.Context, categoryID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, video := range r.videos {
		if video.CategoryID != nil && *video.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (r *Repository) VideoStats(ctx context.Context) (*simplemedia.VideoStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &simplemedia.VideoStats{CategoriesCount: int64(len(r.categories))}
	for _, video := range r.videos {
		stats.TotalVideos++
		stats.TotalViews += video.ViewCount
		if video.IsFavorite {
			stats.FavoriteVideos++
		}
		switch video.Status {
		case simplemedia.VideoStatusPublished:
			stats.PublishedVideos++
		case simplemedia.VideoStatusDraft:
			stats.DraftVideos++
		case simplemedia.VideoStatusArchived:
			stats.ArchivedVideos++
		}
	}
	return stats, nil
}

func (r *Repository) ListVideosMissingThumbnail(ctx context.Context, limit int) ([]*simplemedia.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplemedia.Video
	for _, video := range r.videos {
		if video.NeedsThumbnail() {
			result = append(result, copyVideo(video))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, 0, limit), nil
}

// Helpers

func (r *Repository) categorySlugTaken(slug string, exceptID int64) bool {
	for id, category := range r.categories {
		if id != exceptID && category.Slug == slug {
			return true
		}
	}
	return false
}

func (r *Repository) videoSlugTaken(slug string, exceptID int64) bool {
	for id, video := range r.videos {
		if id != exceptID && video.Slug == slug {
			return true
		}
	}
	return false
}

func copyVideo(video *simplemedia.Video) *simplemedia.Video {
	videoCopy := *video
	if video.CategoryID != nil {
		id := *video.CategoryID
		videoCopy.CategoryID = &id
	}
	if video.PublishedAt != nil {
		t := *video.PublishedAt
		videoCopy.PublishedAt = &t
	}
	return &videoCopy
}

func matchesFilter(video *simplemedia.Video, filter simplemedia.VideoFilter) bool {
	if filter.CategoryID != nil && (video.CategoryID == nil || *video.CategoryID != *filter.CategoryID) {
		return false
	}
	if filter.Status != "" && video.Status != filter.Status {
		return false
	}
	if filter.IsFavorite != nil && video.IsFavorite != *filter.IsFavorite {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(video.Title), search) &&
			!strings.Contains(strings.ToLower(video.Description), search) {
			return false
		}
	}
	if filter.CreatedAfter != nil && video.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && video.CreatedAt.After(*filter.CreatedBefore) {
		return false
	}
	return true
}

func sortVideos(videos []*simplemedia.Video, order simplemedia.VideoOrder) {
	less := func(a, b *simplemedia.Video) bool {
		switch order {
		case simplemedia.OrderCreatedAsc:
			return a.CreatedAt.Before(b.CreatedAt)
		case simplemedia.OrderTitleAsc:
			return a.Title < b.Title
		case simplemedia.OrderTitleDesc:
			return a.Title > b.Title
		case simplemedia.OrderViewCountAsc:
			return a.ViewCount < b.ViewCount
		case simplemedia.OrderViewCountDesc:
			return a.ViewCount > b.ViewCount
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool {
		if less(videos[i], videos[j]) {
			return true
		}
		if less(videos[j], videos[i]) {
			return false
		}
		return videos[i].ID < videos[j].ID
	})
}

func paginate(videos []*simplemedia.Video, offset, limit int) []*simplemedia.Video {
	if offset > 0 {
		if offset >= len(videos) {
			return nil
		}
		videos = videos[offset:]
	}
	if limit > 0 && limit < len(videos) {
		videos = videos[:limit]
	}
	return videos
}
