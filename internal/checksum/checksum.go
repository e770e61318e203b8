// Package checksum fingerprints persisted snapshots and HTTP responses.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns Sum(data) as a strong, quoted HTTP entity tag.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}

// MatchNoneMatch reports whether an If-None-Match header value matches
// etag. It accepts "*", comma-separated lists and weak validators, using the
// weak comparison If-None-Match calls for.
func MatchNoneMatch(header, etag string) bool {
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
