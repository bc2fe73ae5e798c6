package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey returns a stable, non-reversible identifier for an owner so raw
// session ids and phone numbers stay out of logs and the activity ledger.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
