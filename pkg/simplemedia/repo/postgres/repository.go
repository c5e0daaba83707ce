package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplemedia.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const categoryColumns = `id, name, slug, description, COALESCE(image_key, ''), created_at`

const videoColumns = `id, title, slug, description, COALESCE(payload_key, ''), COALESCE(thumbnail_key, ''),
	category_id, status, is_favorite, view_count, created_at, updated_at, published_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "slug") {
				return simplemedia.ErrSlugTaken
			}
			return fmt.Errorf("duplicate entry in %s", operation)
		case "23503": // foreign_key_violation
			return simplemedia.ErrCategoryNotFound
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *simplemedia.Category) error {
	query := `
		INSERT INTO categories (name, slug, description, image_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		category.Name, category.Slug, category.Description,
		nullableKey(category.Image), category.CreatedAt).Scan(&category.ID)
	if err != nil {
		return r.handlePostgresError("create category", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (*simplemedia.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	category, err := scanCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemedia.ErrCategoryNotFound
		}
		return nil, r.handlePostgresError("get category", err)
	}
	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context, filter simplemedia.CategoryFilter) ([]*simplemedia.Category, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Slug != "" {
		args = append(args, filter.Slug)
		where = append(where, fmt.Sprintf("slug = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + categoryColumns + ` FROM categories`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list categories", err)
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
	query := `
		UPDATE categories SET name = $2, slug = $3, description = $4, image_key = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		category.ID, category.Name, category.Slug, category.Description, nullableKey(category.Image))
	if err != nil {
		return r.handlePostgresError("update category", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemedia.ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemedia.ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count categories", err)
	}
	return count, nil
}

func (r *Repository) CategoryStats(ctx context.Context, id int64) (*simplemedia.CategoryStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'published'),
			COUNT(*) FILTER (WHERE status = 'draft'),
			COUNT(*) FILTER (WHERE is_favorite),
			COALESCE(SUM(view_count), 0)
		FROM videos WHERE category_id = $1`

	stats := &simplemedia.CategoryStats{CategoryID: id}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&stats.TotalVideos, &stats.PublishedVideos, &stats.DraftVideos,
		&stats.FavoriteVideos, &stats.TotalViews)
	if err != nil {
		return nil, r.handlePostgresError("category stats", err)
	}
	return stats, nil
}

// Video operations

func (r *Repository) CreateVideo(ctx context.Context, video *simplemedia.Video) error {
	query := `
		INSERT INTO videos (
			title, slug, description, payload_key, thumbnail_key, category_id,
			status, is_favorite, view_count, created_at, updated_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		video.Title, video.Slug, video.Description,
		nullableKey(video.Payload), nullableKey(video.Thumbnail), video.CategoryID,
		string(video.Status), video.IsFavorite, video.ViewCount,
		video.CreatedAt, video.UpdatedAt, video.PublishedAt).Scan(&video.ID)
	if err != nil {
		return r.handlePostgresError("create video", err)
	}
	return nil
}

func (r *Repository) GetVideo(ctx context.Context, id int64) (*simplemedia.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemedia.ErrVideoNotFound
		}
		return nil, r.handlePostgresError("get video", err)
	}
	return video, nil
}

func (r *Repository) ListVideos(ctx context.Context, filter simplemedia.VideoFilter) ([]*simplemedia.Video, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.CategoryID != nil {
		add("category_id = ?", *filter.CategoryID)
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.IsFavorite != nil {
		add("is_favorite = ?", *filter.IsFavorite)
	}
	if filter.Search != "" {
		add("(title ILIKE ? OR description ILIKE ?)", "%"+filter.Search+"%")
	}
	if filter.CreatedAfter != nil {
		add("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		add("created_at <= ?", *filter.CreatedBefore)
	}

	query := `SELECT ` + videoColumns + ` FROM videos`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(filter.OrderBy)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return r.queryVideos(ctx, "list videos", query, args...)
}

func (r *Repository) UpdateVideo(ctx context.Context, video *simplemedia.Video) error {
	query := `
		UPDATE videos SET
			title = $2, slug = $3, description = $4, payload_key = $5,
			thumbnail_key = $6, category_id = $7, status = $8, is_favorite = $9,
			updated_at = $10, published_at = $11
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		video.ID, video.Title, video.Slug, video.Description,
		nullableKey(video.Payload), nullableKey(video.Thumbnail), video.CategoryID,
		string(video.Status), video.IsFavorite, video.UpdatedAt, video.PublishedAt)
	if err != nil {
		return r.handlePostgresError("update video", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemedia.ErrVideoNotFound
	}
	return nil
}

func (r *Repository) DeleteVideo(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete video", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemedia.ErrVideoNotFound
	}
	return nil
}

func (r *Repository) UpdateVideoThumbnail(ctx context.Context, id int64, thumbnail simplemedia.AssetRef) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE videos SET thumbnail_key = $2 WHERE id = $1 AND COALESCE(thumbnail_key, '') = ''`,
		id, nullableKey(thumbnail))
	if err != nil {
		return r.handlePostgresError("update video thumbnail", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return r.handlePostgresError("update video thumbnail", err)
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
		SELECT EXISTS(SELECT 1 FROM categories WHERE image_key = $1 AND NOT ($2 = 'category' AND id = $3))
			OR EXISTS(SELECT 1 FROM videos WHERE (payload_key = $1 OR thumbnail_key = $1) AND NOT ($2 = 'video' AND id = $3))`
	var referenced bool
	if err := r.db.QueryRow(ctx, query, key, string(exceptKind), exceptID).Scan(&referenced); err != nil {
		return false, r.handlePostgresError("check asset key", err)
	}
	return referenced, nil
}

func (r *Repository) SetVideoStatus(ctx context.Context, ids []int64, status simplemedia.VideoStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `UPDATE videos SET status = $2 WHERE id = ANY($1)`, ids, string(status))
	if err != nil {
		return 0, r.handlePostgresError("set video status", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) IncrementViewCount(ctx context.Context, id int64) (int64, error) {
	var views int64
	err := r.db.QueryRow(ctx,
		`UPDATE videos SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`, id).Scan(&views)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, simplemedia.ErrVideoNotFound
		}
		return 0, r.handlePostgresError("increment view count", err)
	}
	return views, nil
}

func (r *Repository) CountVideosInCategory(ctx context.Context, categoryID int64) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE category_id = $1`, categoryID).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count videos in category", err)
	}
	return count, nil
}

func (r *Repository) VideoStats(ctx context.Context) (*simplemedia.VideoStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'published'),
			COUNT(*) FILTER (WHERE status = 'draft'),
			COUNT(*) FILTER (WHERE status = 'archived'),
			COUNT(*) FILTER (WHERE is_favorite),
			COALESCE(SUM(view_count), 0),
			(SELECT COUNT(*) FROM categories)
		FROM videos`

	stats := &simplemedia.VideoStats{}
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalVideos, &stats.PublishedVideos, &stats.DraftVideos, &stats.ArchivedVideos,
		&stats.FavoriteVideos, &stats.TotalViews, &stats.CategoriesCount)
	if err != nil {
		return nil, r.handlePostgresError("video stats", err)
	}
	return stats, nil
}

func (r *Repository) ListVideosMissingThumbnail(ctx context.Context, limit int) ([]*simplemedia.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE COALESCE(payload_key, '') <> '' AND COALESCE(thumbnail_key, '') = ''
		ORDER BY id`
	var args []interface{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}
	return r.queryVideos(ctx, "list videos missing thumbnail", query, args...)
}

// Helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) queryVideos(ctx context.Context, operation, query string, args ...interface{}) ([]*simplemedia.Video, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
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
		category simplemedia.Category
		imageKey string
	)
	if err := row.Scan(&category.ID, &category.Name, &category.Slug, &category.Description,
		&imageKey, &category.CreatedAt); err != nil {
		return nil, err
	}
	category.Image = simplemedia.NewAssetRef(imageKey)
	return &category, nil
}

func scanVideo(row rowScanner) (*simplemedia.Video, error) {
	var (
		video                simplemedia.Video
		payloadKey, thumbKey string
		status               string
	)
	if err := row.Scan(&video.ID, &video.Title, &video.Slug, &video.Description,
		&payloadKey, &thumbKey, &video.CategoryID, &status, &video.IsFavorite,
		&video.ViewCount, &video.CreatedAt, &video.UpdatedAt, &video.PublishedAt); err != nil {
		return nil, err
	}
	video.Payload = simplemedia.NewAssetRef(payloadKey)
	video.Thumbnail = simplemedia.NewAssetRef(thumbKey)
	video.Status = simplemedia.VideoStatus(status)
	return &video, nil
}

// nullableKey maps an absent asset to SQL NULL.
func nullableKey(ref simplemedia.AssetRef) interface{} {
	if !ref.Present() {
		return nil
	}
	return ref.Key
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
