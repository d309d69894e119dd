package webutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentETag returns a strong ETag for a response body: the quoted hex SHA-256 of data.
func ContentETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
