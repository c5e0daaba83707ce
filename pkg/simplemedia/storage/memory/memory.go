package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Backend is an in-memory implementation of the simplemedia.BlobStore interface
type Backend struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	mimeTypes map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
	}
}

// Put stores the reader's bytes under key
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, mimeType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	b.mimeTypes[key] = mimeType
	return key, nil
}

// Get returns a reader over a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, simplemedia.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

// Delete removes the blob stored under key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simplemedia.ErrBlobNotFound
	}
	delete(b.objects, key)
	delete(b.mimeTypes, key)
	return nil
}

// Has reports whether key holds a blob
func (b *Backend) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.objects[key]
	return exists
}

// MimeType returns the MIME type recorded for key
func (b *Backend) MimeType(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mimeTypes[key]
}

// Keys returns every stored key in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
