package simplemedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
)

// DefaultFrameOffset is how far into a clip the thumbnail frame is taken.
const DefaultFrameOffset = time.Second

// ThumbnailKey derives the key of the thumbnail generated for payloadKey. The
// thumbnail sits beside the payload and replaces its extension with
// "_thumb.jpg", so "clip.mp4" yields "clip_thumb.jpg" and
// "videos/7f/clip.mov" yields "videos/7f/clip_thumb.jpg".
func ThumbnailKey(payloadKey string) string {
	dir, file := path.Split(payloadKey)
	return dir + strings.TrimSuffix(file, path.Ext(file)) + "_thumb.jpg"
}

// fallbackThumbnailKey is used when ThumbnailKey is already held by another
// record, e.g. "d/clip.mp4" and "d/clip.mov" both deriving "d/clip_thumb.jpg".
func fallbackThumbnailKey(payloadKey string, videoID int64) string {
	dir, file := path.Split(payloadKey)
	return fmt.Sprintf("%s%s_%d_thumb.jpg", dir, strings.TrimSuffix(file, path.Ext(file)), videoID)
}

// LifecycleConfig wires a Lifecycle to its collaborators.
type LifecycleConfig struct {
	Store      BlobStore
	Repository Repository
	Extractor  FrameExtractor // optional; without it generation degrades
	Encoder    ImageEncoder   // optional; without it generation degrades
	Events     EventSink
	Logger     *slog.Logger
	// FrameOffset defaults to DefaultFrameOffset.
	FrameOffset time.Duration
}

// Lifecycle keeps blobs consistent with the records that reference them. It
// reclaims superseded and orphaned blobs and derives video thumbnails.
//
// Reclamation and generation run to completion once started: the caller's
// context is detached from cancellation for their side effects.
type Lifecycle struct {
	store       BlobStore
	repo        Repository
	extractor   FrameExtractor
	encoder     ImageEncoder
	events      EventSink
	logger      *slog.Logger
	frameOffset time.Duration
}

// NewLifecycle validates cfg and returns a Lifecycle.
func NewLifecycle(cfg LifecycleConfig) (*Lifecycle, error) {
	if cfg.Store == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	l := &Lifecycle{
		store:       cfg.Store,
		repo:        cfg.Repository,
		extractor:   cfg.Extractor,
		encoder:     cfg.Encoder,
		events:      cfg.Events,
		logger:      cfg.Logger,
		frameOffset: cfg.FrameOffset,
	}
	if l.events == nil {
		l.events = NewNoopEventSink()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.frameOffset <= 0 {
		l.frameOffset = DefaultFrameOffset
	}
	return l, nil
}

// Register installs reclamation on BeforeUpdate and BeforeDelete and thumbnail
// generation on AfterWrite. The generator's ThumbnailResult is left in the
// hook context metadata under MetadataThumbnail.
func (l *Lifecycle) Register(h *Hooks) {
	h.OnBeforeUpdate(func(hctx *HookContext, persisted, proposed Record) error {
		l.ReclaimSuperseded(hctx.Context, persisted, proposed)
		return nil
	})
	h.OnBeforeDelete(func(hctx *HookContext, record Record) error {
		l.ReclaimAll(hctx.Context, record)
		return nil
	})
	h.OnAfterWrite(func(hctx *HookContext, record Record) error {
		video, ok := record.(*Video)
		if !ok {
			return nil
		}
		hctx.Metadata[MetadataThumbnail] = l.GenerateThumbnailIfNeeded(hctx.Context, video)
		return nil
	})
}

// Reclaim deletes the blob behind oldRef when oldRef is present and differs
// from newRef. It reports whether a blob was reclaimed. A blob that is already
// gone counts as reclaimed.
func (l *Lifecycle) Reclaim(ctx context.Context, oldRef, newRef AssetRef) (bool, error) {
	if !oldRef.Present() || oldRef.Equal(newRef) {
		return false, nil
	}
	if err := oldRef.Bind(l.store).Delete(context.WithoutCancel(ctx)); err != nil {
		return false, err
	}
	return true, nil
}

// ReclaimSuperseded diffs every asset field of the last committed record
// against the proposed one and reclaims what the proposal replaces or clears.
// A key the proposal still holds in another field is kept. Store failures are
// logged and absorbed. It returns the number of blobs reclaimed.
func (l *Lifecycle) ReclaimSuperseded(ctx context.Context, persisted, proposed Record) int {
	kept := make(map[string]bool)
	for _, field := range proposed.AssetFields() {
		if field.Ref.Present() {
			kept[field.Ref.Key] = true
		}
	}
	reclaimed := 0
	for _, field := range persisted.AssetFields() {
		if kept[field.Ref.Key] {
			continue
		}
		if l.reclaimField(ctx, persisted, field.Name, field.Ref, fieldRef(proposed, field.Name)) {
			reclaimed++
		}
	}
	return reclaimed
}

// ReclaimAll reclaims every occupied asset field of a record about to be
// destroyed. Store failures are logged and absorbed. It returns the number of
// blobs reclaimed.
func (l *Lifecycle) ReclaimAll(ctx context.Context, record Record) int {
	reclaimed := 0
	for _, field := range record.AssetFields() {
		if l.reclaimField(ctx, record, field.Name, field.Ref, AssetRef{}) {
			reclaimed++
		}
	}
	return reclaimed
}

// reclaimField never deletes a blob that another record still references.
func (l *Lifecycle) reclaimField(ctx context.Context, record Record, field string, oldRef, newRef AssetRef) bool {
	if !oldRef.Present() || oldRef.Equal(newRef) {
		return false
	}
	shared, err := l.repo.AssetKeyReferenced(context.WithoutCancel(ctx), oldRef.Key, record.RecordKind(), record.RecordID())
	if err != nil || shared {
		l.logger.WarnContext(ctx, "asset kept: key may be referenced elsewhere",
			"kind", record.RecordKind(), "record_id", record.RecordID(),
			"field", field, "key", oldRef.Key, "shared", shared, "error", err)
		return false
	}

	reclaimed, err := l.Reclaim(ctx, oldRef, newRef)
	if err != nil {
		l.logger.WarnContext(ctx, "failed to reclaim asset",
			"kind", record.RecordKind(), "record_id", record.RecordID(),
			"field", field, "key", oldRef.Key, "error", err)
		return false
	}
	if !reclaimed {
		return false
	}
	event := AssetReclaimedEvent{Kind: record.RecordKind(), RecordID: record.RecordID(), Field: field, Key: oldRef.Key}
	if err := l.events.AssetReclaimed(context.WithoutCancel(ctx), event); err != nil {
		l.logger.WarnContext(ctx, "failed to publish reclaim event", "key", oldRef.Key, "error", err)
	}
	return true
}

// GenerateThumbnailIfNeeded derives a thumbnail for video when it has a
// payload and no thumbnail. On success the thumbnail is stored, written to the
// record with a narrow update, and set on video. Failures are logged and
// reported as ThumbnailDegraded; the video is left without a thumbnail. If a
// thumbnail was attached after video was loaded, the generated one is
// discarded and the result is ThumbnailSkipped.
func (l *Lifecycle) GenerateThumbnailIfNeeded(ctx context.Context, video *Video) ThumbnailResult {
	if !video.Payload.Present() {
		return ThumbnailResult{State: ThumbnailSkipped, Reason: "no payload"}
	}
	if video.Thumbnail.Present() {
		return ThumbnailResult{State: ThumbnailSkipped, Key: video.Thumbnail.Key, Reason: "thumbnail already attached"}
	}

	ctx = context.WithoutCancel(ctx)
	var result ThumbnailResult
	key, err := l.attachThumbnail(ctx, video)
	switch {
	case errors.Is(err, ErrThumbnailAttached):
		return ThumbnailResult{State: ThumbnailSkipped, Reason: "thumbnail already attached"}
	case err != nil:
		l.logger.WarnContext(ctx, "thumbnail generation degraded",
			"video_id", video.ID, "payload", video.Payload.Key, "error", err)
		result = ThumbnailResult{State: ThumbnailDegraded, Reason: err.Error()}
	default:
		video.Thumbnail = NewAssetRef(key)
		result = ThumbnailResult{State: ThumbnailAttached, Key: key}
	}

	if err := l.events.ThumbnailGenerated(ctx, video.ID, result); err != nil {
		l.logger.WarnContext(ctx, "failed to publish thumbnail event", "video_id", video.ID, "error", err)
	}
	return result
}

func (l *Lifecycle) attachThumbnail(ctx context.Context, video *Video) (string, error) {
	if l.extractor == nil || l.encoder == nil {
		return "", ErrGeneratorUnavailable
	}

	clip, err := l.extractor.OpenClip(ctx, video.Payload.Bind(l.store))
	if err != nil {
		return "", decodeError(err)
	}
	defer clip.Close()

	duration := clip.Duration()
	if duration <= 0 {
		return "", ErrEmptyClip
	}
	offset := l.frameOffset
	if duration <= offset {
		offset = duration / 2
	}

	frame, err := l.extractor.FrameAt(ctx, clip, offset)
	if err != nil {
		return "", decodeError(err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return "", ErrEmptyClip
	}

	data, err := l.encoder.Encode(frame, ImageFormatJPEG)
	if err != nil {
		if errors.Is(err, ErrEncode) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}

	thumbKey, err := l.unclaimedThumbnailKey(ctx, video)
	if err != nil {
		return "", err
	}
	stored, err := l.store.Put(ctx, thumbKey, bytes.NewReader(data), "image/jpeg")
	if err != nil {
		return "", &StorageError{Key: thumbKey, Op: "put", Err: err}
	}

	if err := l.repo.UpdateVideoThumbnail(ctx, video.ID, NewAssetRef(stored)); err != nil {
		if delErr := NewAssetRef(stored).Bind(l.store).Delete(ctx); delErr != nil {
			l.logger.WarnContext(ctx, "failed to discard thumbnail", "key", stored, "error", delErr)
		}
		return "", &RecordError{Kind: RecordKindVideo, ID: video.ID, Op: "update_thumbnail", Err: err}
	}
	return stored, nil
}

func (l *Lifecycle) unclaimedThumbnailKey(ctx context.Context, video *Video) (string, error) {
	candidates := []string{ThumbnailKey(video.Payload.Key), fallbackThumbnailKey(video.Payload.Key, video.ID)}
	for _, key := range candidates {
		referenced, err := l.repo.AssetKeyReferenced(ctx, key, "", 0)
		if err != nil {
			return "", &RecordError{Kind: RecordKindVideo, ID: video.ID, Op: "check_thumbnail_key", Err: err}
		}
		if !referenced {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAssetInUse, candidates[len(candidates)-1])
}

func decodeError(err error) error {
	if errors.Is(err, ErrDecode) || errors.Is(err, ErrEmptyClip) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDecode, err)
}
