package memory_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	var _ simplemedia.BlobStore = memory.New()

	t.Run("put and get", func(t *testing.T) {
		backend := memory.New()
		key, err := backend.Put(ctx, "videos/clip.mp4", bytes.NewReader([]byte("data")), "video/mp4")
		require.NoError(t, err)
		assert.Equal(t, "videos/clip.mp4", key)
		assert.Equal(t, "video/mp4", backend.MimeType(key))

		rc, err := backend.Get(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))
	})

	t.Run("default mime type", func(t *testing.T) {
		backend := memory.New()
		key, err := backend.Put(ctx, "blob", bytes.NewReader(nil), "")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", backend.MimeType(key))
	})

	t.Run("missing key", func(t *testing.T) {
		backend := memory.New()
		_, err := backend.Get(ctx, "nope")
		assert.ErrorIs(t, err, simplemedia.ErrBlobNotFound)
		assert.ErrorIs(t, backend.Delete(ctx, "nope"), simplemedia.ErrBlobNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		backend := memory.New()
		_, err := backend.Put(ctx, "a", bytes.NewReader([]byte("1")), "")
		require.NoError(t, err)
		_, err = backend.Put(ctx, "b", bytes.NewReader([]byte("2")), "")
		require.NoError(t, err)

		require.NoError(t, backend.Delete(ctx, "a"))
		assert.False(t, backend.Has("a"))
		assert.Equal(t, []string{"b"}, backend.Keys())
	})
}
