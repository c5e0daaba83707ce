package minio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint  string // host:port, without scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	CreateBucketIfNotExist bool
}

// Backend is a MinIO implementation of the simplemedia.BlobStore interface
type Backend struct {
	client *minio.Client
	bucket string
}

// New creates a new MinIO storage backend
func New(config Config) (*Backend, error) {
	if config.Endpoint == "" || config.AccessKey == "" || config.SecretKey == "" {
		return nil, errors.New("minio configuration is incomplete")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	backend := &Backend{client: client, bucket: config.Bucket}
	if config.CreateBucketIfNotExist {
		if err := backend.ensureBucket(context.Background(), config.Region); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

func (b *Backend) ensureBucket(ctx context.Context, region string) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put streams the reader to MinIO
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, mimeType string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: mimeType}
	if _, err := b.client.PutObject(ctx, b.bucket, key, reader, -1, opts); err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return key, nil
}

// Get opens an object stream. Missing keys are detected by a stat so the
// error surfaces here rather than on the first read.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err, "get")
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translate(err, "stat")
	}
	return obj, nil
}

// Delete removes an object. MinIO deletes are idempotent, so the object is
// checked first to report ErrBlobNotFound for missing keys.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		return translate(err, "stat")
	}
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func translate(err error, op string) error {
	if isNotFound(err) {
		return simplemedia.ErrBlobNotFound
	}
	return fmt.Errorf("failed to %s object: %w", op, err)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject", "NotFound":
		return true
	}
	return false
}
