package storage

import (
	"context"
	"errors"
	"time"
)

var ErrBlobNotFound = errors.New("blob not found")

// Blob is a stored binary object, typically a generated illustration.
type Blob struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Size returns the length of the blob data in bytes.
func (b *Blob) Size() int64 {
	return int64(len(b.Data))
}

// BlobStore persists opaque binary objects under generated ids.
// References to blobs are weak: nothing cascades when a blob is deleted.
type BlobStore interface {
	// Put stores data and returns the new blob's id.
	Put(ctx context.Context, data []byte, filename, mimeType string) (string, error)
	// Get returns ErrBlobNotFound when id is unknown or malformed.
	Get(ctx context.Context, id string) (*Blob, error)
	// Delete returns ErrBlobNotFound when there was nothing to delete.
	Delete(ctx context.Context, id string) error
}
