package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash returns the blake2b-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw blake2b-256 digest of data.
func HashBytes(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

// Hash20 returns the first 20 bytes of the blake2b-256 digest, the size
// used for key-hash addresses (see KeyHash in keys.go).
func Hash20(data []byte) []byte {
	return HashBytes(data)[:20]
}
