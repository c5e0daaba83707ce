package simplemedia_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	repomemory "github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
)

func TestThumbnailKey(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"clip.mp4", "clip_thumb.jpg"},
		{"videos/7f/clip.mov", "videos/7f/clip_thumb.jpg"},
		{"videos/archive.tar.mkv", "videos/archive.tar_thumb.jpg"},
		{"videos/noext", "videos/noext_thumb.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.want, simplemedia.ThumbnailKey(tt.payload))
		})
	}
}

func TestNewLifecycleRequiresCollaborators(t *testing.T) {
	_, err := simplemedia.NewLifecycle(simplemedia.LifecycleConfig{Repository: repomemory.New()})
	assert.Error(t, err)

	_, err = simplemedia.NewLifecycle(simplemedia.LifecycleConfig{Store: newCountingStore()})
	assert.Error(t, err)
}

func TestReclaim(t *testing.T) {
	store := newCountingStore()
	lc, err := simplemedia.NewLifecycle(simplemedia.LifecycleConfig{Store: store, Repository: repomemory.New()})
	require.NoError(t, err)
	ctx := context.Background()

	old := store.seed(t, "videos/old.mp4")

	reclaimed, err := lc.Reclaim(ctx, simplemedia.AssetRef{}, old)
	require.NoError(t, err)
	assert.False(t, reclaimed, "absent reference owns no blob")

	reclaimed, err = lc.Reclaim(ctx, old, simplemedia.NewAssetRef("videos/old.mp4"))
	require.NoError(t, err)
	assert.False(t, reclaimed, "unchanged reference keeps its blob")
	assert.True(t, store.Has(old.Key))

	reclaimed, err = lc.Reclaim(ctx, old, simplemedia.NewAssetRef("videos/new.mp4"))
	require.NoError(t, err)
	assert.True(t, reclaimed)
	assert.False(t, store.Has(old.Key))

	reclaimed, err = lc.Reclaim(ctx, old, simplemedia.AssetRef{})
	require.NoError(t, err)
	assert.True(t, reclaimed, "a blob that is already gone counts as reclaimed")
}

func TestCreateVideoAttachesThumbnail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")

	result, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, simplemedia.ThumbnailAttached, result.Thumbnail.State)
	assert.Equal(t, "videos/clip_thumb.jpg", result.Thumbnail.Key)
	assert.Equal(t, "videos/clip_thumb.jpg", result.Video.Thumbnail.Key)
	assert.True(t, f.store.Has("videos/clip_thumb.jpg"))
	assert.Equal(t, "image/jpeg", f.store.MimeType("videos/clip_thumb.jpg"))
	assert.Equal(t, []time.Duration{simplemedia.DefaultFrameOffset}, f.extractor.offsets)

	stored, err := f.service.GetVideo(ctx, result.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, "videos/clip_thumb.jpg", stored.Thumbnail.Key)
	require.Len(t, f.sink.thumbnails, 1)
}

func TestShortClipUsesMidpoint(t *testing.T) {
	f := newFixture(t)
	f.extractor.duration = 600 * time.Millisecond
	payload := f.store.seed(t, "videos/short.mp4")

	result, err := f.service.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Short", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, simplemedia.ThumbnailAttached, result.Thumbnail.State)
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, f.extractor.offsets)
}

func TestEmptyClipDegrades(t *testing.T) {
	f := newFixture(t)
	f.extractor.duration = 0
	payload := f.store.seed(t, "videos/empty.mp4")

	result, err := f.service.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Empty", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, simplemedia.ThumbnailDegraded, result.Thumbnail.State)
	assert.Contains(t, result.Thumbnail.Reason, simplemedia.ErrEmptyClip.Error())
	assert.False(t, result.Video.Thumbnail.Present())
}

func TestThumbnailGenerationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)
	require.Equal(t, simplemedia.ThumbnailAttached, created.Thumbnail.State)

	title := "Clip renamed"
	updated, err := f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: created.Video.ID, Title: &title})
	require.NoError(t, err)

	assert.Equal(t, simplemedia.ThumbnailSkipped, updated.Thumbnail.State)
	assert.Equal(t, 1, f.extractor.Opened())
	assert.Empty(t, f.store.Deleted())
	assert.Equal(t, "videos/clip_thumb.jpg", updated.Video.Thumbnail.Key)
}

func TestVideoWithoutPayloadSkipsGeneration(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Placeholder"})
	require.NoError(t, err)

	assert.Equal(t, simplemedia.ThumbnailSkipped, result.Thumbnail.State)
	assert.Equal(t, 0, f.extractor.Opened())
	assert.Empty(t, f.sink.thumbnails)
}

func TestReplacingPayloadReclaimsOldBlobOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.store.seed(t, "videos/first.mp4")
	second := f.store.seed(t, "videos/second.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: first})
	require.NoError(t, err)

	_, err = f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: created.Video.ID, Payload: &second})
	require.NoError(t, err)

	assert.Equal(t, []string{"videos/first.mp4"}, f.store.Deleted())
	assert.False(t, f.store.Has(first.Key))
	assert.True(t, f.store.Has(second.Key))
	assert.True(t, f.store.Has("videos/first_thumb.jpg"), "thumbnail is kept when only the payload changes")

	require.Len(t, f.sink.reclaimed, 1)
	assert.Equal(t, simplemedia.FieldPayload, f.sink.reclaimed[0].Field)
	assert.Equal(t, created.Video.ID, f.sink.reclaimed[0].RecordID)

	// Re-saving with the same payload reclaims nothing more.
	_, err = f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: created.Video.ID, Payload: &second})
	require.NoError(t, err)
	assert.Len(t, f.store.Deleted(), 1)
}

func TestClearingThumbnailRegeneratesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	cleared := simplemedia.AssetRef{}
	updated, err := f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: created.Video.ID, Thumbnail: &cleared})
	require.NoError(t, err)

	assert.Equal(t, []string{"videos/clip_thumb.jpg"}, f.store.Deleted())
	assert.Equal(t, simplemedia.ThumbnailAttached, updated.Thumbnail.State)
	assert.True(t, f.store.Has("videos/clip_thumb.jpg"))
	assert.Equal(t, 2, f.extractor.Opened())
}

func TestDeleteVideoReclaimsEveryAsset(t *testing.T) {
	f := newFixture(t)
	payload := f.store.seed(t, "videos/clip.mp4")

	created, err := f.service.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.service.DeleteVideo(ctx, created.Video.ID))

	assert.ElementsMatch(t, []string{"videos/clip.mp4", "videos/clip_thumb.jpg"}, f.store.Deleted())
	assert.False(t, f.store.canceled, "reclamation runs detached from caller cancellation")
	assert.Empty(t, f.store.Keys())
	assert.Equal(t, []int64{created.Video.ID}, f.sink.deleted)

	_, err = f.service.GetVideo(context.Background(), created.Video.ID)
	assert.ErrorIs(t, err, simplemedia.ErrRecordNotFound)
}

func TestRejectedUpdateDeletesNothing(t *testing.T) {
	rejection := errors.New("locked")
	hooks := &simplemedia.Hooks{}
	hooks.OnBeforeUpdate(func(hctx *simplemedia.HookContext, persisted, proposed simplemedia.Record) error {
		return rejection
	})
	f := newFixture(t, simplemedia.WithHooks(hooks))
	ctx := context.Background()
	first := f.store.seed(t, "videos/first.mp4")
	second := f.store.seed(t, "videos/second.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: first})
	require.NoError(t, err)

	_, err = f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: created.Video.ID, Payload: &second})
	require.ErrorIs(t, err, rejection)

	assert.Empty(t, f.store.Deleted())
	stored, err := f.service.GetVideo(ctx, created.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Key, stored.Payload.Key)
}

func TestReclaimFailureDoesNotBlockUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.store.seed(t, "videos/first.mp4")
	second := f.store.seed(t, "videos/second.mp4")

	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: first})
	require.NoError(t, err)

	f.store.failDelete = errors.New("bucket unavailable")
	updated, err := f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: created.Video.ID, Payload: &second})
	require.NoError(t, err)

	assert.Equal(t, second.Key, updated.Video.Payload.Key)
	assert.True(t, f.store.Has(first.Key), "failed reclaim leaves the orphan behind")
	assert.Empty(t, f.sink.reclaimed)
}

func TestDegradedThumbnailIsRecoverable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")

	f.extractor.openErr = errors.New("moov atom not found")
	created, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	assert.True(t, created.Thumbnail.Degraded())
	assert.Contains(t, created.Thumbnail.Reason, simplemedia.ErrDecode.Error())
	assert.False(t, created.Video.Thumbnail.Present())
	assert.False(t, f.store.Has("videos/clip_thumb.jpg"))

	f.extractor.openErr = nil
	regenerated, err := f.service.GenerateThumbnail(ctx, created.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.ThumbnailAttached, regenerated.Thumbnail.State)
	assert.Equal(t, "videos/clip_thumb.jpg", regenerated.Video.Thumbnail.Key)

	again, err := f.service.GenerateThumbnail(ctx, created.Video.ID)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.ThumbnailSkipped, again.Thumbnail.State)
}

func TestRepairThumbnails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.extractor.openErr = errors.New("unreadable")
	for _, key := range []string{"videos/a.mp4", "videos/b.mp4"} {
		payload := f.store.seed(t, key)
		_, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Video " + key, Payload: payload})
		require.NoError(t, err)
	}
	_, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "No payload"})
	require.NoError(t, err)

	f.extractor.openErr = nil
	report, err := f.service.RepairThumbnails(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Attached)
	assert.Equal(t, 0, report.Degraded)

	report, err = f.service.RepairThumbnails(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
}

func TestGeneratorUnavailableDegrades(t *testing.T) {
	store := newCountingStore()
	svc, err := simplemedia.New(
		simplemedia.WithRepository(repomemory.New()),
		simplemedia.WithBlobStore(store),
	)
	require.NoError(t, err)
	payload := store.seed(t, "videos/clip.mp4")

	result, err := svc.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	assert.True(t, result.Thumbnail.Degraded())
	assert.Equal(t, simplemedia.ErrGeneratorUnavailable.Error(), result.Thumbnail.Reason)
}

func TestEncodeFailureDegrades(t *testing.T) {
	f := newFixture(t, simplemedia.WithImageEncoder(&fakeEncoder{err: errors.New("quantizer")}))
	payload := f.store.seed(t, "videos/clip.mp4")

	result, err := f.service.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	assert.True(t, result.Thumbnail.Degraded())
	assert.Contains(t, result.Thumbnail.Reason, simplemedia.ErrEncode.Error())
	assert.False(t, f.store.Has("videos/clip_thumb.jpg"))
}

func TestThumbnailDiscardedWhenRecordWriteFails(t *testing.T) {
	f := newFixture(t, simplemedia.WithRepository(&thumbnailFailingRepo{Repository: repomemory.New()}))
	payload := f.store.seed(t, "videos/clip.mp4")

	result, err := f.service.CreateVideo(context.Background(), simplemedia.CreateVideoRequest{Title: "Clip", Payload: payload})
	require.NoError(t, err)

	assert.True(t, result.Thumbnail.Degraded())
	assert.False(t, result.Video.Thumbnail.Present())
	assert.Equal(t, []string{"videos/clip_thumb.jpg"}, f.store.Deleted())
	assert.False(t, f.store.Has("videos/clip_thumb.jpg"))
}

func TestReplacingCategoryImageReclaimsOldImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.store.seed(t, "categories/first.png")
	second := f.store.seed(t, "categories/second.png")

	category, err := f.service.CreateCategory(ctx, simplemedia.CreateCategoryRequest{Name: "Travel", Image: first})
	require.NoError(t, err)

	_, err = f.service.UpdateCategory(ctx, simplemedia.UpdateCategoryRequest{ID: category.ID, Image: &second})
	require.NoError(t, err)
	assert.Equal(t, []string{first.Key}, f.store.Deleted())

	require.NoError(t, f.service.DeleteCategory(ctx, category.ID))
	assert.Equal(t, []string{first.Key, second.Key}, f.store.Deleted())
}

func TestAssetKeyHeldByAnotherRecordIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/u1/clip.mp4")
	other := f.store.seed(t, "videos/u2/other.mp4")

	first, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "First", Payload: payload})
	require.NoError(t, err)

	_, err = f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Second", Payload: payload})
	assert.ErrorIs(t, err, simplemedia.ErrAssetInUse)

	second, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Second", Payload: other})
	require.NoError(t, err)

	_, err = f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: second.Video.ID, Payload: &payload})
	assert.ErrorIs(t, err, simplemedia.ErrAssetInUse)

	stolen := first.Video.Thumbnail
	_, err = f.service.CreateCategory(ctx, simplemedia.CreateCategoryRequest{Name: "Stolen", Image: stolen})
	assert.ErrorIs(t, err, simplemedia.ErrAssetInUse)

	require.NoError(t, f.service.DeleteVideo(ctx, second.Video.ID))
	assert.True(t, f.store.Has(payload.Key))
	assert.True(t, f.store.Has(first.Video.Thumbnail.Key))

	// Re-saving a record with the keys it already holds is allowed.
	title := "First again"
	_, err = f.service.UpdateVideo(ctx, simplemedia.UpdateVideoRequest{ID: first.Video.ID, Title: &title})
	require.NoError(t, err)
}

func TestSharedKeyIsNotReclaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/u1/clip.mp4")

	// Rows written straight to the repository can still share a key.
	for _, slug := range []string{"first", "second"} {
		video := &simplemedia.Video{Title: slug, Slug: slug, Payload: payload, Status: simplemedia.VideoStatusDraft}
		require.NoError(t, f.repo.CreateVideo(ctx, video))
	}

	require.NoError(t, f.service.DeleteVideo(ctx, 2))
	assert.Empty(t, f.store.Deleted())
	assert.True(t, f.store.Has(payload.Key))

	require.NoError(t, f.service.DeleteVideo(ctx, 1))
	assert.Equal(t, []string{payload.Key}, f.store.Deleted())
}

func TestThumbnailKeyCollisionUsesFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mp4 := f.store.seed(t, "d/clip.mp4")
	mov := f.store.seed(t, "d/clip.mov")

	first, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip mp4", Payload: mp4})
	require.NoError(t, err)
	require.Equal(t, "d/clip_thumb.jpg", first.Video.Thumbnail.Key)

	second, err := f.service.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: "Clip mov", Payload: mov})
	require.NoError(t, err)
	require.Equal(t, simplemedia.ThumbnailAttached, second.Thumbnail.State)
	assert.Equal(t, fmt.Sprintf("d/clip_%d_thumb.jpg", second.Video.ID), second.Video.Thumbnail.Key)

	require.NoError(t, f.service.DeleteVideo(ctx, second.Video.ID))
	assert.True(t, f.store.Has("d/clip_thumb.jpg"), "the other video's thumbnail survives")
	assert.ElementsMatch(t, []string{mov.Key, second.Video.Thumbnail.Key}, f.store.Deleted())
}

func TestGenerationNeverOverwritesAttachedThumbnail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := f.store.seed(t, "videos/clip.mp4")
	uploaded := f.store.seed(t, "thumbnails/uploaded.jpg")

	video := &simplemedia.Video{Title: "Clip", Slug: "clip", Payload: payload, Status: simplemedia.VideoStatusDraft}
	require.NoError(t, f.repo.CreateVideo(ctx, video))
	stale, err := f.repo.GetVideo(ctx, video.ID)
	require.NoError(t, err)

	// A thumbnail lands between listing and generation.
	require.NoError(t, f.repo.UpdateVideoThumbnail(ctx, video.ID, uploaded))

	lc, err := simplemedia.NewLifecycle(simplemedia.LifecycleConfig{
		Store:      f.store,
		Repository: f.repo,
		Extractor:  f.extractor,
		Encoder:    &fakeEncoder{},
	})
	require.NoError(t, err)

	result := lc.GenerateThumbnailIfNeeded(ctx, stale)
	assert.Equal(t, simplemedia.ThumbnailSkipped, result.State)
	assert.False(t, stale.Thumbnail.Present())
	assert.Equal(t, []string{"videos/clip_thumb.jpg"}, f.store.Deleted(), "generated blob is discarded")
	assert.True(t, f.store.Has(uploaded.Key))

	got, err := f.repo.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaded.Key, got.Thumbnail.Key)
}
