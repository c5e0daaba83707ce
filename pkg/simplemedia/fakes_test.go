package simplemedia_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	repomemory "github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
)

// countingStore records every delete issued against the wrapped backend.
type countingStore struct {
	*memory.Backend
	mu         sync.Mutex
	deleted    []string
	failPut    error
	failDelete error
	canceled   bool
}

func newCountingStore() *countingStore {
	return &countingStore{Backend: memory.New()}
}

func (s *countingStore) Put(ctx context.Context, key string, reader io.Reader, mimeType string) (string, error) {
	if s.failPut != nil {
		return "", s.failPut
	}
	return s.Backend.Put(ctx, key, reader, mimeType)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	if ctx.Err() != nil {
		s.canceled = true
	}
	s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	return s.Backend.Delete(ctx, key)
}

func (s *countingStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *countingStore) seed(t *testing.T, key string) simplemedia.AssetRef {
	t.Helper()
	stored, err := s.Backend.Put(context.Background(), key, strings.NewReader(key), "application/octet-stream")
	require.NoError(t, err)
	return simplemedia.NewAssetRef(stored)
}

type fakeClip struct {
	duration time.Duration
	closed   bool
}

func (c *fakeClip) Duration() time.Duration { return c.duration }
func (c *fakeClip) Close() error            { c.closed = true; return nil }

// fakeExtractor returns a solid frame for every payload it can open.
type fakeExtractor struct {
	mu       sync.Mutex
	duration time.Duration
	openErr  error
	offsets  []time.Duration
	opened   int
}

func (e *fakeExtractor) OpenClip(ctx context.Context, asset simplemedia.Asset) (simplemedia.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened++
	if e.openErr != nil {
		return nil, e.openErr
	}
	rc, err := asset.Open(ctx)
	if err != nil {
		return nil, err
	}
	rc.Close()
	return &fakeClip{duration: e.duration}, nil
}

func (e *fakeExtractor) FrameAt(ctx context.Context, clip simplemedia.Clip, offset time.Duration) (image.Image, error) {
	e.mu.Lock()
	e.offsets = append(e.offsets, offset)
	e.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img, nil
}

func (e *fakeExtractor) Opened() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened
}

type fakeEncoder struct {
	err error
}

func (e *fakeEncoder) Encode(img image.Image, format simplemedia.ImageFormat) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte("jpeg:" + string(format)), nil
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu         sync.Mutex
	reclaimed  []simplemedia.AssetReclaimedEvent
	thumbnails []simplemedia.ThumbnailResult
	deleted    []int64
	statuses   []simplemedia.VideoStatus
}

func (s *recordingSink) AssetReclaimed(ctx context.Context, event simplemedia.AssetReclaimedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimed = append(s.reclaimed, event)
	return nil
}

func (s *recordingSink) ThumbnailGenerated(ctx context.Context, videoID int64, result simplemedia.ThumbnailResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbnails = append(s.thumbnails, result)
	return nil
}

func (s *recordingSink) RecordsDeleted(ctx context.Context, kind simplemedia.RecordKind, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ids...)
	return nil
}

func (s *recordingSink) StatusChanged(ctx context.Context, ids []int64, status simplemedia.VideoStatus, updated int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

// thumbnailFailingRepo fails every narrow thumbnail write.
type thumbnailFailingRepo struct {
	*repomemory.Repository
}

func (r *thumbnailFailingRepo) UpdateVideoThumbnail(ctx context.Context, id int64, thumbnail simplemedia.AssetRef) error {
	return errors.New("connection reset")
}

type fixture struct {
	service   simplemedia.Service
	repo      *repomemory.Repository
	store     *countingStore
	extractor *fakeExtractor
	sink      *recordingSink
}

func newFixture(t *testing.T, opts ...simplemedia.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repomemory.New(),
		store:     newCountingStore(),
		extractor: &fakeExtractor{duration: 10 * time.Second},
		sink:      &recordingSink{},
	}
	base := []simplemedia.Option{
		simplemedia.WithRepository(f.repo),
		simplemedia.WithBlobStore(f.store),
		simplemedia.WithFrameExtractor(f.extractor),
		simplemedia.WithImageEncoder(&fakeEncoder{}),
		simplemedia.WithEventSink(f.sink),
	}
	svc, err := simplemedia.New(append(base, opts...)...)
	require.NoError(t, err)
	f.service = svc
	return f
}
