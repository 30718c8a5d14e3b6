// Package models - one_time_token.go defines the OneTimeToken model. The row is
// the authority for a token's lifecycle: the signed JWT only carries the jti,
// and validation succeeds exactly once per row.
package models

import "time"

// OneTimeToken represents a single-use delegated token
type OneTimeToken struct {
	JTI        string // Token identifier embedded in the signed JWT
	UserID     string
	AppID      string
	ConsumedAt *time.Time // Set atomically on first successful validation
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Consumed reports whether the token has already been validated.
func (t *OneTimeToken) Consumed() bool {
	return t.ConsumedAt != nil
}

// Expired reports whether the token's lifetime has elapsed as of now.
func (t *OneTimeToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
