package mongostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/coreybb/rhymera/storage"
	"github.com/gabriel-vasile/mimetype"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type blobMetadata struct {
	ContentType string `bson:"content_type"`
}

// GridFSBlobStore is a storage.BlobStore on a GridFS bucket. Ids are hex ObjectIDs, the same
// ids version 1 stored in illustration_file.
type GridFSBlobStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSBlobStore(db *mongo.Database) (*GridFSBlobStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(imagesBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &GridFSBlobStore{bucket: bucket}, nil
}

func (s *GridFSBlobStore) Put(_ context.Context, data []byte, filename, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cannot store an empty blob")
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	opts := options.GridFSUpload().SetMetadata(blobMetadata{ContentType: mimeType})
	id, err := s.bucket.UploadFromStream(filename, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}
	return id.Hex(), nil
}

func (s *GridFSBlobStore) Get(_ context.Context, id string) (*storage.Blob, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid blob id %q: %w", id, storage.ErrBlobNotFound)
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("blob %s: %w", id, storage.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", id, err)
	}
	defer stream.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(stream); err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}

	file := stream.GetFile()
	blob := &storage.Blob{
		ID:        id,
		Filename:  file.Name,
		Data:      buf.Bytes(),
		CreatedAt: file.UploadDate.UTC(),
	}
	var meta blobMetadata
	if len(file.Metadata) > 0 && bson.Unmarshal(file.Metadata, &meta) == nil {
		blob.ContentType = meta.ContentType
	}
	if blob.ContentType == "" {
		blob.ContentType = mimetype.Detect(blob.Data).String()
	}
	return blob, nil
}

func (s *GridFSBlobStore) Delete(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid blob id %q: %w", id, storage.ErrBlobNotFound)
	}
	if err := s.bucket.Delete(oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("blob %s: %w", id, storage.ErrBlobNotFound)
		}
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	return nil
}
