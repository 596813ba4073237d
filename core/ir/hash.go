package ir

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes computes the BLAKE3 hash of bytes and returns it as a hex
// string. Used for source change detection and cache keying.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashString computes the BLAKE3 hash of a string and returns it as a hex
// string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}
