package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// defaultBlobDir is the base directory used when none is configured.
const defaultBlobDir = "_output"

const (
	blobDataFile = "data"
	blobMetaFile = "meta.json"
)

type blobMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileBlobStore implements BlobStore on the local file system. Each blob lives in its own
// directory: <basePath>/blobs/<id>/{data,meta.json}.
type FileBlobStore struct {
	basePath string
}

// NewFileBlobStore creates a FileBlobStore. If basePath is empty, it defaults to defaultBlobDir.
func NewFileBlobStore(basePath string) *FileBlobStore {
	if basePath == "" {
		basePath = defaultBlobDir
	}
	return &FileBlobStore{basePath: basePath}
}

func (s *FileBlobStore) blobDir(id string) string {
	return filepath.Join(s.basePath, "blobs", id)
}

func (s *FileBlobStore) Put(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cannot store an empty blob")
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	id := uuid.NewString()
	dir := s.blobDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	meta, err := json.Marshal(blobMeta{
		Filename:    filename,
		ContentType: mimeType,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode blob metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, blobDataFile), data, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to write blob data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, blobMetaFile), meta, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to write blob metadata: %w", err)
	}

	slog.DebugContext(ctx, "Stored blob", "component", "file_blob_store", "id", id, "bytes", len(data), "mime_type", mimeType)
	return id, nil
}

func (s *FileBlobStore) Get(_ context.Context, id string) (*Blob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid blob id %q: %w", id, ErrBlobNotFound)
	}

	dir := s.blobDir(id)
	data, err := os.ReadFile(filepath.Join(dir, blobDataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", id, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}

	blob := &Blob{ID: id, Data: data}
	rawMeta, err := os.ReadFile(filepath.Join(dir, blobMetaFile))
	if err == nil {
		var meta blobMeta
		if jsonErr := json.Unmarshal(rawMeta, &meta); jsonErr == nil {
			blob.Filename = meta.Filename
			blob.ContentType = meta.ContentType
			blob.CreatedAt = meta.CreatedAt
		}
	}
	if blob.ContentType == "" {
		blob.ContentType = mimetype.Detect(data).String()
	}
	return blob, nil
}

func (s *FileBlobStore) Delete(_ context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid blob id %q: %w", id, ErrBlobNotFound)
	}

	dir := s.blobDir(id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", id, ErrBlobNotFound)
		}
		return fmt.Errorf("failed to stat blob %s: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	return nil
}
