package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordAlgorithm  = "pbkdf2"
	passwordIterations = 120_000
	passwordSaltLength = 16
	passwordKeyLength  = 32
)

// HashPassword derives a PBKDF2-SHA256 key with a fresh salt and encodes it as
// pbkdf2$<iterations>$<salt-hex>$<key-hex>. The iteration count travels with
// the hash so it can be raised without invalidating stored passwords.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(password, salt, passwordIterations)
	return strings.Join([]string{
		passwordAlgorithm,
		strconv.Itoa(passwordIterations),
		hex.EncodeToString(salt),
		hex.EncodeToString(key),
	}, "$"), nil
}

// VerifyPassword reports whether password matches an encoded hash. Any
// malformed or unrecognized hash yields false.
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passwordAlgorithm {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	if parts[2] == "" || parts[3] == "" {
		return false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	stored, err := hex.DecodeString(parts[3])
	if err != nil {
		return false
	}

	return constantTimeEqual(deriveKey(password, salt, iterations), stored)
}

func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, passwordKeyLength, sha256.New)
}

// constantTimeEqual compares equal-length buffers without early exit.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
