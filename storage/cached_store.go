package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const cacheCleanupInterval = 10 * time.Minute

// CachedBlobStore keeps recently read blobs in memory in front of another BlobStore.
// Blobs are immutable once written, so entries only leave the cache by expiry or Delete.
type CachedBlobStore struct {
	next  BlobStore
	cache *cache.Cache
}

// NewCachedBlobStore wraps next with a read cache. ttl <= 0 uses cache.NoExpiration.
func NewCachedBlobStore(next BlobStore, ttl time.Duration) *CachedBlobStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CachedBlobStore{
		next:  next,
		cache: cache.New(ttl, cacheCleanupInterval),
	}
}

func (c *CachedBlobStore) Put(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	return c.next.Put(ctx, data, filename, mimeType)
}

func (c *CachedBlobStore) Get(ctx context.Context, id string) (*Blob, error) {
	if v, ok := c.cache.Get(id); ok {
		if blob, ok := v.(*Blob); ok {
			return blob, nil
		}
	}
	blob, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(id, blob)
	return blob, nil
}

func (c *CachedBlobStore) Delete(ctx context.Context, id string) error {
	c.cache.Delete(id)
	return c.next.Delete(ctx, id)
}
