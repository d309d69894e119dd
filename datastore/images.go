package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coreybb/rhymera/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ImageRepository is a storage.BlobStore backed by the images table.
type ImageRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewImageRepository(db *sql.DB, dialect Dialect) *ImageRepository {
	return &ImageRepository{db: db, dialect: dialect}
}

func (r *ImageRepository) Put(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cannot store an empty image")
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	id := uuid.NewString()
	query := rebind(r.dialect, `
		INSERT INTO images (id, filename, content_type, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, id, filename, mimeType, data, toUnixMicro(time.Now())); err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}
	return id, nil
}

func (r *ImageRepository) Get(ctx context.Context, id string) (*storage.Blob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid image ID %q: %w", id, storage.ErrBlobNotFound)
	}

	query := rebind(r.dialect, `
		SELECT id, filename, content_type, data, created_at
		FROM images
		WHERE id = ?
	`)
	var (
		blob      storage.Blob
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&blob.ID, &blob.Filename, &blob.ContentType, &blob.Data, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image %s: %w", id, storage.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to get image by ID: %w", err)
	}
	blob.CreatedAt = fromUnixMicro(createdAt)
	return &blob, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid image ID %q: %w", id, storage.ErrBlobNotFound)
	}

	result, err := r.db.ExecContext(ctx, rebind(r.dialect, `DELETE FROM images WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete image %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("image %s: %w", id, storage.ErrBlobNotFound)
	}
	return nil
}
