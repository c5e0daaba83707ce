package minio

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Bucket: "media"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")

	_, err = New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")

	backend, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "media"})
	require.NoError(t, err)
	assert.Equal(t, "media", backend.bucket)
}

func TestTranslate(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	assert.ErrorIs(t, translate(missing, "stat"), simplemedia.ErrBlobNotFound)

	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}
	err := translate(denied, "stat")
	assert.False(t, errors.Is(err, simplemedia.ErrBlobNotFound))
	assert.Contains(t, err.Error(), "failed to stat object")
}
