// Package sha256 computes the content digests recorded next to stored pages.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// MetadataKey is the object metadata key stores use for the digest.
const MetadataKey = "sha256"

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether digest is the SHA-256 of data.
func Matches(data []byte, digest string) bool {
	return Digest(data) == digest
}
