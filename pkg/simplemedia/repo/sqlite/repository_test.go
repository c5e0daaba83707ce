package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestRepository_CategoryLifecycle(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	category := &simplemedia.Category{
		Name:      "Travel",
		Slug:      "travel",
		Image:     simplemedia.NewAssetRef("categories/a/travel.png"),
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateCategory(ctx, category))
	require.NotZero(t, category.ID)

	err := repo.CreateCategory(ctx, &simplemedia.Category{Name: "Dupe", Slug: "travel", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, simplemedia.ErrSlugTaken)

	got, err := repo.GetCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, "categories/a/travel.png", got.Image.Key)

	got.Image = simplemedia.AssetRef{}
	require.NoError(t, repo.UpdateCategory(ctx, got))
	got, err = repo.GetCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.False(t, got.Image.Present())

	list, err := repo.ListCategories(ctx, simplemedia.CategoryFilter{Slug: "travel"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	count, err := repo.CountCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.DeleteCategory(ctx, category.ID))
	assert.ErrorIs(t, repo.DeleteCategory(ctx, category.ID), simplemedia.ErrCategoryNotFound)
}

func TestRepository_VideoLifecycle(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	category := &simplemedia.Category{Name: "Cooking", Slug: "cooking", CreatedAt: base}
	require.NoError(t, repo.CreateCategory(ctx, category))

	published := base.Add(time.Minute)
	first := &simplemedia.Video{
		Title: "Pasta", Slug: "pasta", Status: simplemedia.VideoStatusPublished,
		Payload: simplemedia.NewAssetRef("videos/x/pasta.mp4"), CategoryID: &category.ID,
		IsFavorite: true, CreatedAt: base, UpdatedAt: base, PublishedAt: &published,
	}
	second := &simplemedia.Video{
		Title: "Bread", Slug: "bread", Status: simplemedia.VideoStatusDraft,
		CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
	}
	require.NoError(t, repo.CreateVideo(ctx, first))
	require.NoError(t, repo.CreateVideo(ctx, second))

	got, err := repo.GetVideo(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "videos/x/pasta.mp4", got.Payload.Key)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, category.ID, *got.CategoryID)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(published))
	assert.True(t, got.IsFavorite)

	videos, err := repo.ListVideos(ctx, simplemedia.VideoFilter{})
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "bread", videos[0].Slug)

	videos, err = repo.ListVideos(ctx, simplemedia.VideoFilter{Search: "PAST"})
	require.NoError(t, err)
	require.Len(t, videos, 1)

	videos, err = repo.ListVideos(ctx, simplemedia.VideoFilter{OrderBy: simplemedia.OrderTitleAsc, Offset: 1})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "pasta", videos[0].Slug)

	missing, err := repo.ListVideosMissingThumbnail(ctx, 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, first.ID, missing[0].ID)

	require.NoError(t, repo.UpdateVideoThumbnail(ctx, first.ID, simplemedia.NewAssetRef("videos/x/pasta_thumb.jpg")))
	err = repo.UpdateVideoThumbnail(ctx, first.ID, simplemedia.NewAssetRef("videos/x/other_thumb.jpg"))
	assert.ErrorIs(t, err, simplemedia.ErrThumbnailAttached)
	assert.ErrorIs(t, repo.UpdateVideoThumbnail(ctx, 404, simplemedia.NewAssetRef("x.jpg")), simplemedia.ErrVideoNotFound)

	referenced, err := repo.AssetKeyReferenced(ctx, "videos/x/pasta_thumb.jpg", "", 0)
	require.NoError(t, err)
	assert.True(t, referenced)
	referenced, err = repo.AssetKeyReferenced(ctx, "videos/x/pasta_thumb.jpg", simplemedia.RecordKindVideo, first.ID)
	require.NoError(t, err)
	assert.False(t, referenced)
	missing, err = repo.ListVideosMissingThumbnail(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, missing)

	updated, err := repo.SetVideoStatus(ctx, []int64{first.ID, second.ID, 404}, simplemedia.VideoStatusArchived)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	views, err := repo.IncrementViewCount(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	stats, err := repo.VideoStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalVideos)
	assert.Equal(t, int64(2), stats.ArchivedVideos)
	assert.Equal(t, int64(1), stats.FavoriteVideos)
	assert.Equal(t, int64(1), stats.TotalViews)
	assert.Equal(t, int64(1), stats.CategoriesCount)

	catStats, err := repo.CategoryStats(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), catStats.TotalVideos)

	inUse, err := repo.CountVideosInCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inUse)

	require.NoError(t, repo.DeleteVideo(ctx, first.ID))
	_, err = repo.GetVideo(ctx, first.ID)
	assert.ErrorIs(t, err, simplemedia.ErrVideoNotFound)
}
