// Package auth - refresh.go handles opaque refresh token generation.
//
// Refresh tokens are random, not signed: the server must look them up anyway
// to enforce rotation, so a JWT would add nothing. Only the SHA-256 digest is
// stored; the plaintext exists once, in the session response.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RefreshTokenLength is the length of a refresh token in bytes before encoding
const RefreshTokenLength = 32

// GenerateRefreshToken creates a new opaque refresh token
// Returns: the token (to show once) and its SHA-256 digest (to store)
func GenerateRefreshToken() (token string, digest string, err error) {
	randomBytes := make([]byte, RefreshTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = hex.EncodeToString(randomBytes)
	return token, HashRefreshToken(token), nil
}

// HashRefreshToken returns the hex-encoded SHA-256 digest of a refresh token.
// Unlike passwords, refresh tokens are high-entropy random values, so an
// unsalted fast hash is sufficient and keeps lookups indexable.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
