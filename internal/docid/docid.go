// Package docid derives stable document identifiers and content revisions.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const filePrefix = "file:"

// FromPath returns a stable document ID for the given absolute file path.
// The same path always yields the same ID, so re-ingesting a changed file
// replaces its previous chunks instead of accumulating duplicates.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return filePrefix + hex.EncodeToString(hash[:])
}

// Revision returns a content fingerprint used to skip re-embedding when a
// document is synced again with identical text.
func Revision(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
