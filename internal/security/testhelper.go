package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

// NewTestTokenCodec returns a TokenCodec using fixed test secrets, issuer "test-issuer",
// a 15 minute access TTL and a 7 day refresh TTL. For unit tests only.
func NewTestTokenCodec() *TokenCodec {
	c, err := NewTokenCodec([]byte(testAccessSecret), []byte(testRefreshSecret), "test-issuer", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		panic(err)
	}
	return c
}
