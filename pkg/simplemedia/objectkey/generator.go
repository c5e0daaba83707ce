package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Collections group uploaded blobs by the record field they belong to.
const (
	CollectionVideos     = "videos"
	CollectionThumbnails = "thumbnails"
	CollectionCategories = "categories"
)

// Generator defines the interface for upload key generation strategies
type Generator interface {
	// GenerateKey creates a storage key for a newly uploaded blob
	GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Collection string // one of the Collection constants
	FileName   string
}

// FlatGenerator places every upload in its own directory:
// {collection}/{objectID}/{filename}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	collection := collectionOf(metadata)
	if metadata != nil && metadata.FileName != "" {
		return fmt.Sprintf("%s/%s/%s", collection, objectID, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("%s/%s", collection, objectID)
}

// GitLikeGenerator provides Git-style sharded storage:
// {collection}/ab/cd1234ef5678_filename
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	objectIDStr := strings.ReplaceAll(objectID.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard > len(objectIDStr) {
		shard = 2
	}

	shardDir := objectIDStr[:shard]
	filename := objectIDStr[shard:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}

	return fmt.Sprintf("%s/%s/%s", collectionOf(metadata), shardDir, filename)
}

// NewRecommendedGenerator returns the generator used when none is configured
func NewRecommendedGenerator() Generator {
	return NewFlatGenerator()
}

// ByName returns the generator registered under name ("flat" or "git-like").
func ByName(name string) (Generator, error) {
	switch strings.ToLower(name) {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "git-like", "gitlike":
		return NewGitLikeGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key generator: %s", name)
	}
}

func collectionOf(metadata *KeyMetadata) string {
	if metadata == nil || metadata.Collection == "" {
		return "uploads"
	}
	return sanitizePathComponent(metadata.Collection)
}

// sanitizeFilename keeps only the base name and replaces characters that are
// unsafe on filesystems or in object keys.
func sanitizeFilename(filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
