package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewSecret generates a cryptographically secure random secret.
// Format: tk_<48 random hex characters>.
func NewSecret() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "tk_" + hex.EncodeToString(bytes), nil
}

// HashSecret hashes a plaintext secret with SHA-256 for storage and lookup.
func HashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}
