// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher implements harvest.Hasher-style hashing using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	return Sum(data), nil
}

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizedText digests text after collapsing whitespace and lowercasing,
// so trivially reformatted duplicates hash identically.
func NormalizedText(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return Sum([]byte(normalized))
}
