package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Repository implements simplemedia.Repository on a local SQLite file.
type Repository struct {
	db *sql.DB
}

const categoryColumns = `id, name, slug, description, COALESCE(image_key, ''), created_at`

const videoColumns = `id, title, slug, description, COALESCE(payload_key, ''), COALESCE(thumbnail_key, ''),
	category_id, status, is_favorite, view_count, created_at, updated_at, published_at`

func translate(operation string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, ".slug"):
		return simplemedia.ErrSlugTaken
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return simplemedia.ErrCategoryNotFound
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("table does not exist - database migration required")
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *simplemedia.Category) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, slug, description, image_key, created_at) VALUES (?, ?, ?, ?, ?)`,
		category.Name, category.Slug, category.Description, nullableKey(category.Image), formatTime(category.CreatedAt))
	if err != nil {
		return translate("create category", err)
	}
	category.ID, err = res.LastInsertId()
	return err
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (*simplemedia.Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simplemedia.ErrCategoryNotFound
		}
		return nil, translate("get category", err)
	}
	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context, filter simplemedia.CategoryFilter) ([]*simplemedia.Category, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Slug != "" {
		where = append(where, "slug = ?")
		args = append(args, filter.Slug)
	}
	if filter.Search != "" {
		where = append(where, "(name LIKE ? OR description LIKE ?)")
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	query := `SELECT ` + categoryColumns + ` FROM categories`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("list categories", err)
	}
	defer rows.Close()

	var categories []*simplemedia.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *Repository) UpdateCategory(ctx context.Context, category *simplemedia.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, slug = ?, description = ?, image_key = ? WHERE id = ?`,
		category.Name, category.Slug, category.Description, nullableKey(category.Image), category.ID)
	if err != nil {
		return translate("update category", err)
	}
	return expectRow(res, simplemedia.ErrCategoryNotFound)
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return translate("delete category", err)
	}
	return expectRow(res, simplemedia.ErrCategoryNotFound)
}

func (r *Repository) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, translate("count categories", err)
	}
	return count, nil
}

func (r *Repository) CategoryStats(ctx context.Context, id int64) (*simplemedia.CategoryStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_favorite), 0),
			COALESCE(SUM(view_count), 0)
		FROM videos WHERE category_id = ?`

	stats := &simplemedia.CategoryStats{CategoryID: id}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stats.TotalVideos, &stats.PublishedVideos, &stats.DraftVideos,
		&stats.FavoriteVideos, &stats.TotalViews)
	if err != nil {
		return nil, translate("category stats", err)
	}
	return stats, nil
}

// Video operations

func (r *Repository) CreateVideo(ctx context.Context, video *simplemedia.Video) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (
			title, slug, description, payload_key, thumbnail_key, category_id,
			status, is_favorite, view_count, created_at, updated_at, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.Title, video.Slug, video.Description,
		nullableKey(video.Payload), nullableKey(video.Thumbnail), video.CategoryID,
		string(video.Status), video.IsFavorite, video.ViewCount,
		formatTime(video.CreatedAt), formatTime(video.UpdatedAt), formatTimePtr(video.PublishedAt))
	if err != nil {
		return translate("create video", err)
	}
	video.ID, err = res.LastInsertId()
	return err
}

func (r *Repository) GetVideo(ctx context.Context, id int64) (*simplemedia.Video, error) {
	video, err := scanVideo(r.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, simplemedia.ErrVideoNotFound
		}
		return nil, translate("get video", err)
	}
	return video, nil
}

func (r *Repository) ListVideos(ctx context.Context, filter simplemedia.VideoFilter) ([]*simplemedia.Video, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.IsFavorite != nil {
		where = append(where, "is_favorite = ?")
		args = append(args, *filter.IsFavorite)
	}
	if filter.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.CreatedAfter != nil {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(*filter.CreatedAfter))
	}
	if filter.CreatedBefore != nil {
		where = append(where, "created_at <= ?")
		args = append(args, formatTime(*filter.CreatedBefore))
	}

	query := `SELECT ` + videoColumns + ` FROM videos`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(filter.OrderBy)
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	return r.queryVideos(ctx, "list videos", query, args...)
}

func (r *Repository) UpdateVideo(ctx context.Context, video *simplemedia.Video) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE videos SET
			title = ?, slug = ?, description = ?, payload_key = ?, thumbnail_key = ?,
			category_id = ?, status = ?, is_favorite = ?, updated_at = ?, published_at = ?
		WHERE id = ?`,
		video.Title, video.Slug, video.Description,
		nullableKey(video.Payload), nullableKey(video.Thumbnail), video.CategoryID,
		string(video.Status), video.IsFavorite, formatTime(video.UpdatedAt),
		formatTimePtr(video.PublishedAt), video.ID)
	if err != nil {
		return translate("update video", err)
	}
	return expectRow(res, simplemedia.ErrVideoNotFound)
}

func (r *Repository) DeleteVideo(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return translate("delete video", err)
	}
	return expectRow(res, simplemedia.ErrVideoNotFound)
}

func (r *Repository) UpdateVideoThumbnail(ctx context.Context, id int64, thumbnail simplemedia.AssetRef) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE videos SET thumbnail_key = ? WHERE id = ? AND COALESCE(thumbnail_key, '') = ''`,
		nullableKey(thumbnail), id)
	if err != nil {
		return translate("update video thumbnail", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = ?)`, id).Scan(&exists); err != nil {
		return translate("update video thumbnail", err)
	}
	if !exists {
		return simplemedia.ErrVideoNotFound
	}
	return simplemedia.ErrThumbnailAttached
}

func (r *Repository) AssetKeyReferenced(ctx context.Context, key string, exceptKind simplemedia.RecordKind, exceptID int64) (bool, error) {
	if key == "" {
		return false, nil
	}
	query := `
		SELECT EXISTS(SELECT 1 FROM categories WHERE image_key = ? AND NOT (? = 'category' AND id = ?))
			OR EXISTS(SELECT 1 FROM videos WHERE (payload_key = ? OR thumbnail_key = ?) AND NOT (? = 'video' AND id = ?))`
	kind := string(exceptKind)
	var referenced bool
	err := r.db.QueryRowContext(ctx, query, key, kind, exceptID, key, key, kind, exceptID).Scan(&referenced)
	if err != nil {
		return false, translate("check asset key", err)
	}
	return referenced, nil
}

func (r *Repository) SetVideoStatus(ctx context.Context, ids []int64, status simplemedia.VideoStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, string(status))
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	res, err := r.db.ExecContext(ctx, `UPDATE videos SET status = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, translate("set video status", err)
	}
	return res.RowsAffected()
}

func (r *Repository) IncrementViewCount(ctx context.Context, id int64) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE videos SET view_count = view_count + 1 WHERE id = ? RETURNING view_count`, id).Scan(&views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, simplemedia.ErrVideoNotFound
		}
		return 0, translate("increment view count", err)
	}
	return views, nil
}

func (r *Repository) CountVideosInCategory(ctx context.Context, categoryID int64) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos WHERE category_id = ?`, categoryID).Scan(&count); err != nil {
		return 0, translate("count videos in category", err)
	}
	return count, nil
}

func (r *Repository) VideoStats(ctx context.Context) (*simplemedia.VideoStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'archived' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_favorite), 0),
			COALESCE(SUM(view_count), 0),
			(SELECT COUNT(*) FROM categories)
		FROM videos`

	stats := &simplemedia.VideoStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalVideos, &stats.PublishedVideos, &stats.DraftVideos, &stats.ArchivedVideos,
		&stats.FavoriteVideos, &stats.TotalViews, &stats.CategoriesCount)
	if err != nil {
		return nil, translate("video stats", err)
	}
	return stats, nil
}

func (r *Repository) ListVideosMissingThumbnail(ctx context.Context, limit int) ([]*simplemedia.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE COALESCE(payload_key, '') <> '' AND COALESCE(thumbnail_key, '') = ''
		ORDER BY id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryVideos(ctx, "list videos missing thumbnail", query, args...)
}

// Helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) queryVideos(ctx context.Context, operation, query string, args ...interface{}) ([]*simplemedia.Video, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(operation, err)
	}
	defer rows.Close()

	var videos []*simplemedia.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func scanCategory(row rowScanner) (*simplemedia.Category, error) {
	var (
		category  simplemedia.Category
		imageKey  string
		createdAt string
	)
	if err := row.Scan(&category.ID, &category.Name, &category.Slug, &category.Description,
		&imageKey, &createdAt); err != nil {
		return nil, err
	}
	category.Image = simplemedia.NewAssetRef(imageKey)
	category.CreatedAt = parseTime(createdAt)
	return &category, nil
}

func scanVideo(row rowScanner) (*simplemedia.Video, error) {
	var (
		video                simplemedia.Video
		payloadKey, thumbKey string
		status               string
		categoryID           sql.NullInt64
		createdAt, updatedAt string
		publishedAt          sql.NullString
	)
	if err := row.Scan(&video.ID, &video.Title, &video.Slug, &video.Description,
		&payloadKey, &thumbKey, &categoryID, &status, &video.IsFavorite,
		&video.ViewCount, &createdAt, &updatedAt, &publishedAt); err != nil {
		return nil, err
	}
	video.Payload = simplemedia.NewAssetRef(payloadKey)
	video.Thumbnail = simplemedia.NewAssetRef(thumbKey)
	video.Status = simplemedia.VideoStatus(status)
	if categoryID.Valid {
		id := categoryID.Int64
		video.CategoryID = &id
	}
	video.CreatedAt = parseTime(createdAt)
	video.UpdatedAt = parseTime(updatedAt)
	if publishedAt.Valid {
		t := parseTime(publishedAt.String)
		video.PublishedAt = &t
	}
	return &video, nil
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullableKey(ref simplemedia.AssetRef) interface{} {
	if !ref.Present() {
		return nil
	}
	return ref.Key
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func orderClause(order simplemedia.VideoOrder) string {
	switch order {
	case simplemedia.OrderCreatedAsc:
		return "created_at ASC, id ASC"
	case simplemedia.OrderTitleAsc:
		return "title ASC, id ASC"
	case simplemedia.OrderTitleDesc:
		return "title DESC, id ASC"
	case simplemedia.OrderViewCountAsc:
		return "view_count ASC, id ASC"
	case simplemedia.OrderViewCountDesc:
		return "view_count DESC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

var _ simplemedia.Repository = (*Repository)(nil)
