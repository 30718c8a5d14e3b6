package tokens

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Set JWT secret for tests that sign and verify one-time tokens
	os.Setenv("NEXIN_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}
