// Package checksum fingerprints stored document bytes. The index and the
// document service compare fingerprints to tell their own writes from
// edits made on disk.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data fingerprints to sum. An empty sum never
// matches.
func Matches(data []byte, sum string) bool {
	return sum != "" && Sum(data) == sum
}
