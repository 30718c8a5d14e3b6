// Package auth provides authentication primitives for the Nexin backend:
// password hashing, access token (JWT) creation/verification, one-time token
// signing, and app secret generation/verification with bcrypt hashing.
// See internal/middleware/auth.go for the request-time authentication logic
// that uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AppSecretLength is the length of the random part of an app secret in bytes
	AppSecretLength = 32

	// DisplayPrefixLength is the number of characters to show in displays
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateAppSecret creates a new random app secret with the given prefix
// Returns: full secret (to show once), bcrypt hash (to store), display prefix
func GenerateAppSecret(prefix string) (secret string, hash string, displayPrefix string, err error) {
	// Generate random bytes
	randomBytes := make([]byte, AppSecretLength)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Encode to base64 (URL-safe)
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	// Construct full secret: prefix_randomPart
	fullSecret := fmt.Sprintf("%s_%s", prefix, randomPart)

	// Hash the full secret with bcrypt
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullSecret), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash app secret: %w", err)
	}

	// Generate display prefix (first N characters of full secret)
	displayPrefixStr := fullSecret
	if len(fullSecret) > DisplayPrefixLength {
		displayPrefixStr = fullSecret[:DisplayPrefixLength]
	}

	return fullSecret, string(hashBytes), displayPrefixStr, nil
}

// VerifyAppSecret checks if a provided secret matches the stored hash
func VerifyAppSecret(providedSecret, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedSecret))
	return err == nil
}

// ExtractBearerToken extracts the token from an Authorization header
// Expected format: "Bearer eyJhbGciOi..."
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	// Check if it starts with "Bearer "
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	// Extract the token (remove "Bearer " prefix)
	token := strings.TrimPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}

	return token, nil
}
