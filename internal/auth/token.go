package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SessionTokenBytes is the entropy of a session token (hex-encoded to 64 chars).
const SessionTokenBytes = 32

// GenerateSessionToken creates a random session token and its fingerprint.
// The token goes to the client; only the fingerprint is stored.
func GenerateSessionToken() (token, fingerprint string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate session token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, FingerprintSessionToken(token), nil
}

// FingerprintSessionToken returns the hex SHA-256 of a session token.
func FingerprintSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
