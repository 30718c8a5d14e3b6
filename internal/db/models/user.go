// Package models defines the database model types for the credential service.
// Each type corresponds to a database table. Models are pure data types —
// business logic belongs in the handlers, query logic in the repositories layer.
package models

import "time"

// User represents a registered account
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	LastLoginAt  *time.Time // Set on each successful login
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
