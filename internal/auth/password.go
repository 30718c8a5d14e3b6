// Package auth - password.go handles user password hashing and verification.
package auth

import "golang.org/x/crypto/bcrypt"

// decoyHash is a valid bcrypt hash of a random throwaway value. Login runs a
// comparison against it when the user does not exist so that unknown-username
// and wrong-password failures take comparable time.
const decoyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// CheckPassword verifies a plaintext password against a stored bcrypt hash
func CheckPassword(password, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	return err == nil
}

// CheckPasswordDecoy burns a bcrypt comparison against a fixed hash. It
// always returns false.
func CheckPasswordDecoy(password string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(decoyHash), []byte(password))
	return false
}
