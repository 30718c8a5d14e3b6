// Package models - refresh_token.go defines the RefreshToken model. Only the
// SHA-256 digest of the token is stored; the raw value never touches the database.
package models

import "time"

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // SHA-256 hex digest of the raw token
	Revoked   bool   // Set on rotation or explicit logout
	ExpiresAt time.Time
	CreatedAt time.Time
}
