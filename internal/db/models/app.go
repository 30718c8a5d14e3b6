// Package models - app.go defines the App model for registered applications
// that authenticate with a show-once secret and receive delegated tokens.
package models

import "time"

// App represents a registered application
type App struct {
	ID             string
	AppName        string
	AppDescription *string
	SecretHash     string // Bcrypt hash of the full secret
	SecretPrefix   string // First chars of the secret for display (e.g., "nxn_abc123")
	CreatedBy      string // Owning user ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
