package simplemedia_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	repomemory "github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
)

// deleteFailingRepo refuses to remove the listed videos.
type deleteFailingRepo struct {
	*repomemory.Repository
	fail map[int64]bool
}

func (r *deleteFailingRepo) DeleteVideo(ctx context.Context, id int64) error {
	if r.fail[id] {
		return errors.New("row locked")
	}
	return r.Repository.DeleteVideo(ctx, id)
}

func TestBulkChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	published, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Launch", Status: simplemedia.VideoStatusPublished})
	require.NoError(t, err)
	require.NotNil(t, published.Video.PublishedAt)

	updated, err := f.service.BulkChangeStatus(ctx, []int64{1, 2}, simplemedia.VideoStatusArchived)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	video, err := f.service.GetVideo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.VideoStatusArchived, video.Status)
	require.NotNil(t, video.PublishedAt)
	assert.True(t, published.Video.PublishedAt.Equal(*video.PublishedAt))
	assert.Equal(t, []simplemedia.VideoStatus{simplemedia.VideoStatusArchived}, f.sink.statuses)
}

func TestBulkChangeStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Draft clip"})
	require.NoError(t, err)

	updated, err := f.service.BulkChangeStatus(ctx, []int64{1}, "deleted")
	assert.ErrorIs(t, err, simplemedia.ErrInvalidStatus)
	assert.Zero(t, updated)

	video, err := f.service.GetVideo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.VideoStatusDraft, video.Status)
	assert.Empty(t, f.sink.statuses)
}

func TestBulkChangeStatusDedupesAndSkipsHooks(t *testing.T) {
	calls := 0
	hooks := &simplemedia.Hooks{}
	hooks.OnBeforeUpdate(func(hctx *simplemedia.HookContext, persisted, proposed simplemedia.Record) error {
		calls++
		return nil
	})
	f := newFixture(t, simplemedia.WithHooks(hooks))
	ctx := context.Background()

	_, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Repeat"})
	require.NoError(t, err)

	updated, err := f.service.BulkChangeStatus(ctx, []int64{1, 1, 1}, simplemedia.VideoStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	assert.Zero(t, calls)

	video, err := f.service.GetVideo(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, video.PublishedAt, "bulk status leaves published_at untouched")

	updated, err = f.service.BulkChangeStatus(ctx, nil, simplemedia.VideoStatusDraft)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)
	require.Equal(t, simplemedia.ThumbnailAttached, created.Thumbnail.State)

	deleted, err := f.service.BulkDelete(ctx, []int64{created.Video.ID, 99, created.Video.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.ElementsMatch(t, []string{"videos/clip.mp4", "videos/clip_thumb.jpg"}, f.store.Deleted())
	assert.Len(t, f.sink.reclaimed, 2)
	assert.Equal(t, []int64{created.Video.ID}, f.sink.deleted)

	deleted, err = f.service.BulkDelete(ctx, []int64{created.Video.ID})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestBulkDeleteContinuesPastFailures(t *testing.T) {
	repo := &deleteFailingRepo{Repository: repomemory.New(), fail: map[int64]bool{2: true}}
	var reported []string
	hooks := &simplemedia.Hooks{}
	hooks.OnFailure(func(hctx *simplemedia.HookContext, operation string, err error) {
		reported = append(reported, operation)
	})
	f := newFixture(t, simplemedia.WithRepository(repo), simplemedia.WithHooks(hooks))
	ctx := context.Background()

	for _, title := range []string{"One clip", "Two clip", "Three clip"} {
		_, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: title})
		require.NoError(t, err)
	}

	deleted, err := f.service.BulkDelete(ctx, []int64{1, 2, 3})
	assert.Equal(t, int64(2), deleted)
	require.Error(t, err)

	var recordErr *simplemedia.RecordError
	require.ErrorAs(t, err, &recordErr)
	assert.Equal(t, int64(2), recordErr.ID)
	assert.Equal(t, []string{"bulk_delete"}, reported)

	_, err = f.service.GetVideo(ctx, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, f.sink.deleted)
}

func TestBulkDeleteRemovesRowWhenReclaimFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)
	require.True(t, created.Video.Thumbnail.Present())

	f.store.failDelete = errors.New("bucket unavailable")
	deleted, err := f.service.BulkDelete(ctx, []int64{created.Video.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = f.service.GetVideo(ctx, created.Video.ID)
	assert.ErrorIs(t, err, simplemedia.ErrVideoNotFound)
	assert.ElementsMatch(t, []string{"videos/clip.mp4", "videos/clip_thumb.jpg"}, f.store.Deleted())
	assert.Empty(t, f.sink.reclaimed)
	assert.Equal(t, []int64{created.Video.ID}, f.sink.deleted)
}
