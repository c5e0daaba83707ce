package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestOptions(t *testing.T) {
	cfg, err := Load(
		WithPort("9000"),
		WithEnvironment("testing"),
		WithDatabase("sqlite", "/tmp/media.db"),
		WithFilesystemStorage("", "/tmp/blobs"),
		WithDefaultStorage("fs"),
		WithObjectKeyGenerator("git-like"),
		WithThumbnailOffset(2*time.Second),
		WithThumbnailEncoding(70, 320),
		WithFFmpeg("/usr/local/bin/ffmpeg", ""),
	)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "/tmp/media.db", cfg.SQLitePath)
	assert.Equal(t, "fs", cfg.DefaultStorageBackend)
	assert.Equal(t, "git-like", cfg.ObjectKeyGenerator)
	assert.Equal(t, 2*time.Second, cfg.ThumbnailOffset)
	assert.Equal(t, 70, cfg.ThumbnailQuality)
	assert.Equal(t, uint(320), cfg.ThumbnailMaxWidth)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
}

func TestOptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty port", WithPort("")},
		{"unknown database", WithDatabase("mysql", "x")},
		{"postgres without url", WithDatabase("postgres", "")},
		{"unknown generator", WithObjectKeyGenerator("tenant-aware")},
		{"zero offset", WithThumbnailOffset(0)},
		{"bad quality", WithThumbnailEncoding(0, 100)},
		{"s3 endpoint without backend", WithS3Endpoint("", "http://localhost:9000", true)},
		{"empty amqp", WithAMQP("", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestValidateMissingDefaultBackend(t *testing.T) {
	_, err := Load(WithDefaultStorage("s3"))
	assert.ErrorContains(t, err, "not found in configured backends")
}

func TestBuildServiceInMemory(t *testing.T) {
	cfg, err := Load(WithThumbnails(false), WithEventLogging(false))
	require.NoError(t, err)

	svc, cleanup, err := cfg.BuildService(nil)
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	category, err := svc.CreateCategory(ctx, simplemedia.CreateCategoryRequest{Name: "Tutorials"})
	require.NoError(t, err)
	assert.Equal(t, "tutorials", category.Slug)

	result, err := svc.CreateVideo(ctx, simplemedia.CreateVideoRequest{
		Title:      "Getting started",
		Payload:    simplemedia.NewAssetRef("videos/start.mp4"),
		CategoryID: &category.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, simplemedia.ThumbnailDegraded, result.Thumbnail.State)
}

func TestBuildServiceSQLite(t *testing.T) {
	cfg, err := Load(
		WithDatabase("sqlite", t.TempDir()+"/media.db"),
		WithFilesystemStorage("", t.TempDir()),
		WithDefaultStorage("fs"),
		WithThumbnails(false),
	)
	require.NoError(t, err)

	svc, cleanup, err := cfg.BuildService(nil)
	require.NoError(t, err)
	defer cleanup()

	stats, err := svc.GetVideoStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalVideos)
}
