// Package security provides token hashing, audit logging, input validation
// and log masking.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// TokenBytes is the amount of randomness in an issued bearer token.
	TokenBytes = 32
	// HashKeySize is the size of the derived token hash in bytes.
	HashKeySize = 32
	// DefaultPBKDF2Iterations is the iteration count for token hashing.
	DefaultPBKDF2Iterations = 10000
)

// TokenHasher derives the stored form of bearer tokens. Only hashes are
// persisted; the raw token is shown to the user once.
type TokenHasher struct {
	salt       []byte
	iterations int
}

// NewTokenHasher creates a hasher with a per-deployment salt.
func NewTokenHasher(salt string, iterations int) *TokenHasher {
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return &TokenHasher{salt: []byte(salt), iterations: iterations}
}

// Hash returns the hex PBKDF2-SHA256 digest of token.
func (h *TokenHasher) Hash(token string) string {
	key := pbkdf2.Key([]byte(token), h.salt, h.iterations, HashKeySize, sha256.New)
	return hex.EncodeToString(key)
}

// Verify reports whether token hashes to hash, in constant time.
func (h *TokenHasher) Verify(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(token)), []byte(hash)) == 1
}

// NewToken generates a URL-safe random bearer token.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
