// account.go validates registration input: email shape, username charset and
// length, and password length against the configured minimum.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
)

// Username length bounds accepted at registration
const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

// ValidateEmail validates that the address parses as a single RFC 5322 address
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	// Reject display-name forms like "Alice <alice@example.com>"
	if addr.Address != email {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}

// ValidateUsername validates username length and character set.
// Allowed characters: letters, digits, underscore, hyphen.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return fmt.Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return fmt.Errorf("username may only contain letters, digits, underscore, and hyphen")
		}
	}
	return nil
}

// isUsernameRune checks if the rune is allowed in a username
func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// ValidatePassword validates password length against the configured minimum
func ValidatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = 8
	}
	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters", minLength)
	}
	// Whitespace-only passwords of sufficient length are still rejected
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be blank")
	}
	return nil
}
