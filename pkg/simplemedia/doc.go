// Package simplemedia manages categories and videos whose binary assets
// (category images, video payloads, thumbnails) live in a pluggable blob
// store rather than in the records themselves.
//
// The Service keeps the blob store consistent with the records that
// reference it. Before an update commits, every asset field of the last
// committed record is diffed against the proposed value and superseded blobs
// are reclaimed. Before a delete commits, every occupied asset field is
// reclaimed. After a video is written, a thumbnail is derived from its payload
// when the payload is present and the thumbnail is absent.
//
// Lifecycle behavior is attached through explicitly registered Hooks rather
// than implicit dispatch. Implementations of repositories (memory, Postgres,
// SQLite) and blob stores (memory, filesystem, S3, MinIO) are provided under
// subpackages.
package simplemedia
