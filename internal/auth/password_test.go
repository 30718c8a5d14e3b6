package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := HashPassword("pw123456")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		if !CheckPassword("pw123456", hash) {
			t.Error("CheckPassword() returned false for correct password")
		}
	})

	t.Run("wrong password does not verify", func(t *testing.T) {
		hash, err := HashPassword("pw123456")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		if CheckPassword("pw654321", hash) {
			t.Error("CheckPassword() returned true for wrong password")
		}
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		hash1, _ := HashPassword("pw123456")
		hash2, _ := HashPassword("pw123456")
		if hash1 == hash2 {
			t.Error("HashPassword() produced identical hashes (missing salt?)")
		}
	})
}

func TestCheckPasswordDecoy(t *testing.T) {
	if CheckPasswordDecoy("anything") {
		t.Error("CheckPasswordDecoy() must always return false")
	}
	if CheckPasswordDecoy("") {
		t.Error("CheckPasswordDecoy() must always return false")
	}
}
