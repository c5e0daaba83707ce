package simplemedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// AssetRef identifies the blob bound to one asset field of one record.
// The zero value is an absent reference. Two references name the same asset
// iff their keys are equal.
type AssetRef struct {
	Key string
}

// NewAssetRef returns a reference to key. An empty key yields an absent reference.
func NewAssetRef(key string) AssetRef {
	return AssetRef{Key: strings.TrimSpace(key)}
}

// Present reports whether the reference names a blob.
func (r AssetRef) Present() bool {
	return r.Key != ""
}

// Equal reports whether r and other name the same blob.
func (r AssetRef) Equal(other AssetRef) bool {
	return r.Key == other.Key
}

// BaseName returns the last element of the key without its extension.
func (r AssetRef) BaseName() string {
	if !r.Present() {
		return ""
	}
	base := path.Base(r.Key)
	return strings.TrimSuffix(base, path.Ext(base))
}

func (r AssetRef) String() string {
	if !r.Present() {
		return "<absent>"
	}
	return r.Key
}

// MarshalJSON encodes a present reference as its key and an absent one as null.
func (r AssetRef) MarshalJSON() ([]byte, error) {
	if !r.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(r.Key)
}

// UnmarshalJSON accepts a key string or null.
func (r *AssetRef) UnmarshalJSON(data []byte) error {
	var key *string
	if err := json.Unmarshal(data, &key); err != nil {
		return fmt.Errorf("asset reference must be a string or null: %w", err)
	}
	if key == nil {
		*r = AssetRef{}
		return nil
	}
	*r = NewAssetRef(*key)
	return nil
}

// Bind attaches r to the store that holds its blob.
func (r AssetRef) Bind(store BlobStore) Asset {
	return &boundAsset{ref: r, store: store}
}

// Asset is an AssetRef bound to its blob store.
type Asset interface {
	Ref() AssetRef
	Present() bool
	// Open returns the blob contents. It fails with ErrAssetAbsent on an
	// absent reference and ErrBlobNotFound when the key holds nothing.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Delete removes the blob. Deleting an absent reference or a blob that is
	// already gone succeeds.
	Delete(ctx context.Context) error
}

type boundAsset struct {
	ref   AssetRef
	store BlobStore
}

func (a *boundAsset) Ref() AssetRef {
	return a.ref
}

func (a *boundAsset) Present() bool {
	return a.ref.Present()
}

func (a *boundAsset) Open(ctx context.Context) (io.ReadCloser, error) {
	if !a.ref.Present() {
		return nil, ErrAssetAbsent
	}
	rc, err := a.store.Get(ctx, a.ref.Key)
	if err != nil {
		return nil, &StorageError{Key: a.ref.Key, Op: "get", Err: err}
	}
	return rc, nil
}

func (a *boundAsset) Delete(ctx context.Context) error {
	if !a.ref.Present() {
		return nil
	}
	if err := a.store.Delete(ctx, a.ref.Key); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil
		}
		return &StorageError{Key: a.ref.Key, Op: "delete", Err: err}
	}
	return nil
}

// AssetField is a named asset slot on a record.
type AssetField struct {
	Name string
	Ref  AssetRef
}

// Asset field names.
const (
	FieldImage     = "image"
	FieldPayload   = "payload"
	FieldThumbnail = "thumbnail"
)

// fieldRef returns the reference held by the named field of rec.
func fieldRef(rec Record, name string) AssetRef {
	for _, f := range rec.AssetFields() {
		if f.Name == name {
			return f.Ref
		}
	}
	return AssetRef{}
}
