package vt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// frameHash computes a SHA-256 digest over the canonical JSON encoding
// of the frame-without-hash (spec.md §4.4: "equal frames MUST yield
// equal hashes"). encoding/json already sorts struct fields by their
// declared order deterministically and map keys alphabetically, which is
// sufficient here since SnapshotFrame contains no maps.
func frameHash(f *SnapshotFrame) string {
	b, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
