package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// SessionCookieName is the cookie carrying the raw bearer token.
	SessionCookieName = "todo_session"
	// SessionMaxAge is both the cookie max-age and the server-side session TTL.
	SessionMaxAge = 60 * 60 * 24 * 30 * time.Second

	sessionTokenBytes = 32
)

// NewSessionToken returns 32 random bytes, hex-encoded.
func NewSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashSessionToken returns the hex SHA-256 digest used as the lookup key.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
