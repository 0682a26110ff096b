package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDigest returns a short SHA-256 fingerprint of a token, hex-encoded, for log and audit lines.
// Raw tokens are never logged.
func TokenDigest(token string) string {
	if token == "" {
		return ""
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:8])
}
