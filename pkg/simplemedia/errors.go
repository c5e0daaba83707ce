package simplemedia

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrRecordNotFound indicates a category or video was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrCategoryNotFound indicates a category was not found
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrRecordNotFound)

	// ErrVideoNotFound indicates a video was not found
	ErrVideoNotFound = fmt.Errorf("video %w", ErrRecordNotFound)

	// ErrBlobNotFound is returned by blob stores when a key holds no object
	ErrBlobNotFound = errors.New("blob not found")

	// ErrAssetAbsent indicates an operation needed a present asset reference
	ErrAssetAbsent = errors.New("asset reference is absent")

	// ErrAssetInUse indicates a blob key is already referenced by another record
	ErrAssetInUse = errors.New("asset key already referenced")

	// ErrThumbnailAttached indicates a narrow thumbnail write found a thumbnail already in place
	ErrThumbnailAttached = errors.New("video already has a thumbnail")

	// ErrInvalidStatus indicates a video status outside draft, published, archived
	ErrInvalidStatus = errors.New("invalid video status")

	// ErrInvalidRecord indicates a record failed field validation
	ErrInvalidRecord = errors.New("invalid record")

	// ErrSlugTaken indicates another record of the same kind already uses the slug
	ErrSlugTaken = errors.New("slug already in use")

	// ErrCategoryInUse indicates a category cannot be removed while videos reference it
	ErrCategoryInUse = errors.New("category has videos")

	// ErrDecode indicates the payload could not be opened or a frame could not be read
	ErrDecode = errors.New("decode failed")

	// ErrEmptyClip indicates the payload decoded to a clip without frames
	ErrEmptyClip = errors.New("clip has no frames")

	// ErrEncode indicates a frame could not be encoded as a still image
	ErrEncode = errors.New("encode failed")

	// ErrUnsupportedFormat indicates an image format the encoder does not produce
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrGeneratorUnavailable indicates thumbnail generation has no extractor or encoder configured
	ErrGeneratorUnavailable = errors.New("thumbnail generator not configured")
)

// RecordError represents an error related to a category or video operation
type RecordError struct {
	Kind RecordKind
	ID   int64
	Op   string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation %s failed for %s %d: %v", e.Kind, e.Op, e.Kind, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError describes a single field that failed validation.
// It unwraps to ErrInvalidRecord.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}
