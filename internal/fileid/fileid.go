// Package fileid identifies watched files and their contents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	pathPrefix    = "file:"
	contentPrefix = "sha256:"
)

// PathID returns a stable ID for path. Paths that clean to the same value
// share an ID.
func PathID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return pathPrefix + hex.EncodeToString(hash[:])
}

// Digest identifies content. Two files with equal bytes have equal digests.
func Digest(content []byte) string {
	hash := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(hash[:])
}
