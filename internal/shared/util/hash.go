package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// OwnerKey returns a filesystem-safe identifier for a user ID. The
// digest is truncated to keep object keys short; collisions across
// owners are acceptable for key layout since the full ID still gates
// access.
func OwnerKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}
