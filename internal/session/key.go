package session

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashKey returns a fixed-length hex digest of a session id. Client ids are arbitrary
// strings; the digest keeps storage keys bounded and free of raw client input.
func HashKey(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
