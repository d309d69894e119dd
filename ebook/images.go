package ebook

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/storage"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	jpegQuality = 85
	// Images are downscaled to fit this pixel box before embedding (6x4 inches at 300 dpi).
	maxImageWidthPx  = 1800
	maxImageHeightPx = 1200
)

var errNoImage = errors.New("illustration has no image")

// BlobGetter is the read side of a storage.BlobStore.
type BlobGetter interface {
	Get(ctx context.Context, id string) (*storage.Blob, error)
}

// preparedImage is an illustration decoded and re-encoded as JPEG, ready to embed.
type preparedImage struct {
	JPEG   []byte
	Width  int
	Height int
}

// imageResolver loads illustration bytes: inline base64 first, then the blob store by ref.
type imageResolver struct {
	blobs BlobGetter
}

func (r imageResolver) raw(ctx context.Context, ill models.Illustration) ([]byte, error) {
	var inlineErr error
	if ill.Image != nil && *ill.Image != "" {
		data, err := base64.StdEncoding.DecodeString(*ill.Image)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		inlineErr = fmt.Errorf("failed to decode inline image: %w", err)
	}

	if ill.Ref != nil && *ill.Ref != "" && r.blobs != nil {
		blob, err := r.blobs.Get(ctx, *ill.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", *ill.Ref, err)
		}
		return blob.Data, nil
	}

	if inlineErr != nil {
		return nil, inlineErr
	}
	return nil, errNoImage
}

// prepare resolves and normalizes an illustration. Any failure is returned for the caller to log
// and skip; it never aborts a render.
func (r imageResolver) prepare(ctx context.Context, ill models.Illustration) (*preparedImage, error) {
	if !ill.HasImage() {
		return nil, errNoImage
	}
	data, err := r.raw(ctx, ill)
	if err != nil {
		return nil, err
	}
	return normalizeImage(data)
}

func normalizeImage(data []byte) (*preparedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var fitted image.Image = imaging.Fit(img, maxImageWidthPx, maxImageHeightPx, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	bounds := fitted.Bounds()
	return &preparedImage{JPEG: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

func logSkippedImage(ctx context.Context, component, bookID, label string, err error) {
	if errors.Is(err, errNoImage) {
		return
	}
	slog.WarnContext(ctx, "Skipping illustration", "component", component, "book_id", bookID, "image", label, "error", err)
}
