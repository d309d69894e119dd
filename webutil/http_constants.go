package webutil

const (
	// Header Keys
	HeaderContentType        = "Content-Type"
	HeaderAuthorization      = "Authorization"
	HeaderCacheControl       = "Cache-Control"
	HeaderContentDisposition = "Content-Disposition"
	HeaderETag               = "ETag"
	HeaderIfNoneMatch        = "If-None-Match"
	HeaderRetryAfter         = "Retry-After"

	// Content Types
	ContentTypeJSONUTF8      = "application/json; charset=utf-8"
	ContentTypeTextPlainUTF8 = "text/plain; charset=utf-8"
	ContentTypePDF           = "application/pdf"
	ContentTypeEPUB          = "application/epub+zip"
	ContentTypeForm          = "application/x-www-form-urlencoded"

	// Images are addressed by immutable ids.
	CacheControlImmutable = "public, max-age=31536000, immutable"
)
