package simplemedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// service implements the Service interface
type service struct {
	repository   Repository
	blobStore    BlobStore
	extractor    FrameExtractor
	encoder      ImageEncoder
	eventSink    EventSink
	logger       *slog.Logger
	keyGenerator objectkey.Generator
	frameOffset  time.Duration
	userHooks    []*Hooks

	hooks          *Hooks
	lifecycleHooks *Hooks
	lifecycle      *Lifecycle
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store holding every asset
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithFrameExtractor sets the decoder used to capture thumbnail frames
func WithFrameExtractor(extractor FrameExtractor) Option {
	return func(s *service) {
		s.extractor = extractor
	}
}

// WithImageEncoder sets the encoder used to compress thumbnail frames
func WithImageEncoder(encoder ImageEncoder) Option {
	return func(s *service) {
		s.encoder = encoder
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithKeyGenerator sets the strategy for naming uploaded blobs
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithFrameOffset sets how far into a clip the thumbnail frame is taken
func WithFrameOffset(offset time.Duration) Option {
	return func(s *service) {
		s.frameOffset = offset
	}
}

// WithHooks registers lifecycle hooks. Registered hooks run ahead of asset
// reclamation and thumbnail generation, so a hook that rejects a mutation
// leaves its blobs untouched. StopChain ends only the registered chain.
func WithHooks(hooks *Hooks) Option {
	return func(s *service) {
		if hooks != nil {
			s.userHooks = append(s.userHooks, hooks)
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keyGenerator == nil {
		s.keyGenerator = objectkey.NewRecommendedGenerator()
	}

	lifecycle, err := NewLifecycle(LifecycleConfig{
		Store:       s.blobStore,
		Repository:  s.repository,
		Extractor:   s.extractor,
		Encoder:     s.encoder,
		Events:      s.eventSink,
		Logger:      s.logger,
		FrameOffset: s.frameOffset,
	})
	if err != nil {
		return nil, err
	}
	s.lifecycle = lifecycle

	s.hooks = &Hooks{}
	for _, h := range s.userHooks {
		s.hooks.Merge(h)
	}
	s.lifecycleHooks = &Hooks{}
	lifecycle.Register(s.lifecycleHooks)

	return s, nil
}

// Category operations

func (s *service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	category := &Category{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
		CreatedAt:   time.Now().UTC(),
	}
	if err := normalizeCategory(category); err != nil {
		return nil, err
	}
	if err := s.checkAssetKeys(ctx, nil, category); err != nil {
		return nil, err
	}

	if err := s.repository.CreateCategory(ctx, category); err != nil {
		return nil, &RecordError{Kind: RecordKindCategory, Op: "create", Err: err}
	}

	s.afterWrite(ctx, category)
	return category, nil
}

func (s *service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return s.repository.GetCategory(ctx, id)
}

func (s *service) ListCategories(ctx context.Context, filter CategoryFilter) ([]*Category, error) {
	return s.repository.ListCategories(ctx, filter)
}

func (s *service) UpdateCategory(ctx context.Context, req UpdateCategoryRequest) (*Category, error) {
	return s.updateCategory(ctx, req.ID, func(c *Category) {
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.Slug != nil {
			c.Slug = *req.Slug
		}
		if req.Description != nil {
			c.Description = *req.Description
		}
		if req.Image != nil {
			c.Image = *req.Image
		}
	})
}

// updateCategory loads the committed category, applies mutate to a copy and
// commits it after the BeforeUpdate hooks have seen both versions.
func (s *service) updateCategory(ctx context.Context, id int64, mutate func(*Category)) (*Category, error) {
	persisted, err := s.repository.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	proposed := *persisted
	mutate(&proposed)
	if err := normalizeCategory(&proposed); err != nil {
		return nil, err
	}
	if err := s.checkAssetKeys(ctx, persisted, &proposed); err != nil {
		return nil, err
	}

	if err := s.beforeUpdate(ctx, persisted, &proposed); err != nil {
		return nil, &RecordError{Kind: RecordKindCategory, ID: id, Op: "before_update", Err: err}
	}

	if err := s.repository.UpdateCategory(ctx, &proposed); err != nil {
		return nil, &RecordError{Kind: RecordKindCategory, ID: id, Op: "update", Err: err}
	}

	s.afterWrite(ctx, &proposed)
	return &proposed, nil
}

func (s *service) DeleteCategory(ctx context.Context, id int64) error {
	category, err := s.repository.GetCategory(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repository.CountVideosInCategory(ctx, id)
	if err != nil {
		return &RecordError{Kind: RecordKindCategory, ID: id, Op: "delete", Err: err}
	}
	if count > 0 {
		return fmt.Errorf("%w: %d videos reference category %d", ErrCategoryInUse, count, id)
	}

	if err := s.beforeDelete(ctx, category); err != nil {
		return &RecordError{Kind: RecordKindCategory, ID: id, Op: "before_delete", Err: err}
	}

	if err := s.repository.DeleteCategory(ctx, id); err != nil {
		return &RecordError{Kind: RecordKindCategory, ID: id, Op: "delete", Err: err}
	}

	s.publishDeleted(ctx, RecordKindCategory, []int64{id})
	return nil
}

func (s *service) GetCategoryStats(ctx context.Context, id int64) (*CategoryStats, error) {
	if _, err := s.repository.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return s.repository.CategoryStats(ctx, id)
}

func (s *service) UploadCategoryImage(ctx context.Context, req UploadAssetRequest) (*Category, error) {
	if err := ValidateUploadName(FieldImage, req.FileName); err != nil {
		return nil, err
	}
	if _, err := s.repository.GetCategory(ctx, req.RecordID); err != nil {
		return nil, err
	}

	ref, err := s.putUpload(ctx, objectkey.CollectionCategories, req)
	if err != nil {
		return nil, err
	}

	category, err := s.updateCategory(ctx, req.RecordID, func(c *Category) {
		c.Image = ref
	})
	if err != nil {
		s.discardUpload(ctx, ref)
		return nil, err
	}
	return category, nil
}

// Video operations

func (s *service) CreateVideo(ctx context.Context, req CreateVideoRequest) (*VideoWriteResult, error) {
	now := time.Now().UTC()
	video := &Video{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Payload:     req.Payload,
		Thumbnail:   req.Thumbnail,
		CategoryID:  req.CategoryID,
		Status:      req.Status,
		IsFavorite:  req.IsFavorite,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := normalizeVideo(video); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, video.CategoryID); err != nil {
		return nil, err
	}
	if err := s.checkAssetKeys(ctx, nil, video); err != nil {
		return nil, err
	}
	stampPublished(video, now)

	if err := s.repository.CreateVideo(ctx, video); err != nil {
		return nil, &RecordError{Kind: RecordKindVideo, Op: "create", Err: err}
	}

	hctx := s.afterWrite(ctx, video)
	return &VideoWriteResult{Video: video, Thumbnail: thumbnailResult(hctx)}, nil
}

func (s *service) GetVideo(ctx context.Context, id int64) (*Video, error) {
	return s.repository.GetVideo(ctx, id)
}

func (s *service) ListVideos(ctx context.Context, filter VideoFilter) ([]*Video, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	if filter.OrderBy == "" {
		filter.OrderBy = OrderCreatedDesc
	}
	if !filter.OrderBy.IsValid() {
		return nil, &ValidationError{Field: "ordering", Message: fmt.Sprintf("unsupported ordering %q", filter.OrderBy)}
	}
	return s.repository.ListVideos(ctx, filter)
}

func (s *service) UpdateVideo(ctx context.Context, req UpdateVideoRequest) (*VideoWriteResult, error) {
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
	}
	return s.updateVideo(ctx, req.ID, func(v *Video) {
		if req.Title != nil {
			v.Title = *req.Title
		}
		if req.Slug != nil {
			v.Slug = *req.Slug
		}
		if req.Description != nil {
			v.Description = *req.Description
		}
		if req.Payload != nil {
			v.Payload = *req.Payload
		}
		if req.Thumbnail != nil {
			v.Thumbnail = *req.Thumbnail
		}
		if req.ClearCategory {
			v.CategoryID = nil
		} else if req.CategoryID != nil {
			id := *req.CategoryID
			v.CategoryID = &id
		}
		if req.Status != nil {
			v.Status = *req.Status
		}
		if req.IsFavorite != nil {
			v.IsFavorite = *req.IsFavorite
		}
	})
}

// updateVideo loads the committed video, applies mutate to a copy, lets the
// BeforeUpdate hooks diff the two versions, commits, and then runs the
// AfterWrite hooks.
func (s *service) updateVideo(ctx context.Context, id int64, mutate func(*Video)) (*VideoWriteResult, error) {
	persisted, err := s.repository.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	proposed := *persisted
	mutate(&proposed)
	if err := normalizeVideo(&proposed); err != nil {
		return nil, err
	}
	if err := s.checkAssetKeys(ctx, persisted, &proposed); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	proposed.UpdatedAt = now
	stampPublished(&proposed, now)

	if err := s.beforeUpdate(ctx, persisted, &proposed); err != nil {
		return nil, &RecordError{Kind: RecordKindVideo, ID: id, Op: "before_update", Err: err}
	}

	if err := s.repository.UpdateVideo(ctx, &proposed); err != nil {
		return nil, &RecordError{Kind: RecordKindVideo, ID: id, Op: "update", Err: err}
	}

	hctx := s.afterWrite(ctx, &proposed)
	return &VideoWriteResult{Video: &proposed, Thumbnail: thumbnailResult(hctx)}, nil
}

func (s *service) DeleteVideo(ctx context.Context, id int64) error {
	video, err := s.repository.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deleteVideo(ctx, video); err != nil {
		return err
	}
	s.publishDeleted(ctx, RecordKindVideo, []int64{id})
	return nil
}

// deleteVideo runs the BeforeDelete hooks for video, then removes its row.
// Assets are reclaimed before the row is removed, so a failing removal
// leaves a record whose blobs are already gone.
func (s *service) deleteVideo(ctx context.Context, video *Video) error {
	if err := s.beforeDelete(ctx, video); err != nil {
		return &RecordError{Kind: RecordKindVideo, ID: video.ID, Op: "before_delete", Err: err}
	}
	if err := s.repository.DeleteVideo(ctx, video.ID); err != nil {
		return &RecordError{Kind: RecordKindVideo, ID: video.ID, Op: "delete", Err: err}
	}
	return nil
}

func (s *service) IncrementViewCount(ctx context.Context, id int64) (int64, error) {
	return s.repository.IncrementViewCount(ctx, id)
}

func (s *service) GetVideoStats(ctx context.Context) (*VideoStats, error) {
	return s.repository.VideoStats(ctx)
}

func (s *service) UploadVideoPayload(ctx context.Context, req UploadAssetRequest) (*VideoWriteResult, error) {
	return s.uploadVideoAsset(ctx, FieldPayload, objectkey.CollectionVideos, req)
}

func (s *service) UploadVideoThumbnail(ctx context.Context, req UploadAssetRequest) (*VideoWriteResult, error) {
	return s.uploadVideoAsset(ctx, FieldThumbnail, objectkey.CollectionThumbnails, req)
}

func (s *service) uploadVideoAsset(ctx context.Context, field, collection string, req UploadAssetRequest) (*VideoWriteResult, error) {
	if err := ValidateUploadName(field, req.FileName); err != nil {
		return nil, err
	}
	if _, err := s.repository.GetVideo(ctx, req.RecordID); err != nil {
		return nil, err
	}

	ref, err := s.putUpload(ctx, collection, req)
	if err != nil {
		return nil, err
	}

	result, err := s.updateVideo(ctx, req.RecordID, func(v *Video) {
		if field == FieldPayload {
			v.Payload = ref
		} else {
			v.Thumbnail = ref
		}
	})
	if err != nil {
		s.discardUpload(ctx, ref)
		return nil, err
	}
	return result, nil
}

func (s *service) OpenAsset(ctx context.Context, ref AssetRef) (io.ReadCloser, error) {
	return ref.Bind(s.blobStore).Open(ctx)
}

// Asset lifecycle operations

func (s *service) GenerateThumbnail(ctx context.Context, videoID int64) (*VideoWriteResult, error) {
	video, err := s.repository.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	result := s.lifecycle.GenerateThumbnailIfNeeded(ctx, video)
	return &VideoWriteResult{Video: video, Thumbnail: result}, nil
}

func (s *service) RepairThumbnails(ctx context.Context, limit int) (*RepairReport, error) {
	videos, err := s.repository.ListVideosMissingThumbnail(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos missing thumbnails: %w", err)
	}

	report := &RepairReport{}
	for _, video := range videos {
		report.Scanned++
		switch s.lifecycle.GenerateThumbnailIfNeeded(ctx, video).State {
		case ThumbnailAttached:
			report.Attached++
		case ThumbnailDegraded:
			report.Degraded++
		}
	}
	s.logger.InfoContext(ctx, "thumbnail repair finished",
		"scanned", report.Scanned, "attached", report.Attached, "degraded", report.Degraded)
	return report, nil
}

// Helpers

// beforeUpdate runs the registered chain, then the lifecycle chain once the
// registered chain accepts the mutation. StopChain ends only the registered
// chain; beforeDelete and afterWrite follow the same order.
func (s *service) beforeUpdate(ctx context.Context, persisted, proposed Record) error {
	if err := s.hooks.executeBeforeUpdate(ctx, persisted, proposed); err != nil {
		return err
	}
	return s.lifecycleHooks.executeBeforeUpdate(ctx, persisted, proposed)
}

func (s *service) beforeDelete(ctx context.Context, record Record) error {
	if err := s.hooks.executeBeforeDelete(ctx, record); err != nil {
		return err
	}
	return s.lifecycleHooks.executeBeforeDelete(ctx, record)
}

func (s *service) afterWrite(ctx context.Context, record Record) *HookContext {
	s.hooks.executeAfterWrite(ctx, record)
	return s.lifecycleHooks.executeAfterWrite(ctx, record)
}

// checkAssetKeys rejects any asset key of rec that another record already
// holds. Keys rec kept unchanged from persisted are not checked again.
func (s *service) checkAssetKeys(ctx context.Context, persisted, rec Record) error {
	for _, field := range rec.AssetFields() {
		if !field.Ref.Present() {
			continue
		}
		if persisted != nil && fieldRef(persisted, field.Name).Equal(field.Ref) {
			continue
		}
		referenced, err := s.repository.AssetKeyReferenced(ctx, field.Ref.Key, rec.RecordKind(), rec.RecordID())
		if err != nil {
			return fmt.Errorf("failed to check %s key: %w", field.Name, err)
		}
		if referenced {
			return fmt.Errorf("%s %w: %s", field.Name, ErrAssetInUse, field.Ref.Key)
		}
	}
	return nil
}

func (s *service) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.repository.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return &ValidationError{Field: "category_id", Message: fmt.Sprintf("category %d does not exist", *id)}
		}
		return err
	}
	return nil
}

func (s *service) putUpload(ctx context.Context, collection string, req UploadAssetRequest) (AssetRef, error) {
	if req.Reader == nil {
		return AssetRef{}, &ValidationError{Field: "file", Message: "is required"}
	}
	key := s.keyGenerator.GenerateKey(uuid.New(), &objectkey.KeyMetadata{
		Collection: collection,
		FileName:   req.FileName,
	})
	stored, err := s.blobStore.Put(ctx, key, req.Reader, req.MimeType)
	if err != nil {
		return AssetRef{}, &StorageError{Key: key, Op: "put", Err: err}
	}
	return NewAssetRef(stored), nil
}

// discardUpload removes a blob that was stored for a write that then failed.
func (s *service) discardUpload(ctx context.Context, ref AssetRef) {
	if err := ref.Bind(s.blobStore).Delete(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to discard upload", "key", ref.Key, "error", err)
	}
}

func (s *service) publishDeleted(ctx context.Context, kind RecordKind, ids []int64) {
	if len(ids) == 0 {
		return
	}
	if err := s.eventSink.RecordsDeleted(context.WithoutCancel(ctx), kind, ids); err != nil {
		s.logger.WarnContext(ctx, "failed to publish delete event", "kind", kind, "error", err)
	}
}

// stampPublished sets PublishedAt the first time a video is saved as published.
func stampPublished(v *Video, now time.Time) {
	if v.Status == VideoStatusPublished && v.PublishedAt == nil {
		t := now
		v.PublishedAt = &t
	}
}

func thumbnailResult(hctx *HookContext) ThumbnailResult {
	if result, ok := hctx.Metadata[MetadataThumbnail].(ThumbnailResult); ok {
		return result
	}
	return ThumbnailResult{State: ThumbnailSkipped, Reason: "generator did not run"}
}
