package routehandlers

import (
	"fmt"
	"net/http"

	"github.com/coreybb/rhymera/storage"
	"github.com/coreybb/rhymera/webutil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

type ImageHandler struct {
	Blobs storage.BlobStore
}

func NewImageHandler(blobs storage.BlobStore) *ImageHandler {
	return &ImageHandler{Blobs: blobs}
}

// HandleGetImage serves a stored illustration. Blob ids never change content, so responses are
// cacheable indefinitely.
func (h *ImageHandler) HandleGetImage(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	blob, err := h.Blobs.Get(r.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", id, err)
	}

	etag := webutil.ContentETag(blob.Data)
	w.Header().Set(webutil.HeaderETag, etag)
	w.Header().Set(webutil.HeaderCacheControl, webutil.CacheControlImmutable)
	if r.Header.Get(webutil.HeaderIfNoneMatch) == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(blob.Data).String()
	}
	webutil.RespondWithBytes(w, http.StatusOK, contentType, blob.Data)
	return nil
}
