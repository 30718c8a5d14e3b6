package auth

import "testing"

func TestGenerateRefreshToken(t *testing.T) {
	t.Run("returns token and matching digest", func(t *testing.T) {
		token, digest, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error: %v", err)
		}
		if token == "" {
			t.Fatal("GenerateRefreshToken() returned empty token")
		}
		if digest != HashRefreshToken(token) {
			t.Error("returned digest does not match HashRefreshToken(token)")
		}
	})

	t.Run("token is 64 hex characters", func(t *testing.T) {
		token, _, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error: %v", err)
		}
		if len(token) != RefreshTokenLength*2 {
			t.Errorf("token length = %d, want %d", len(token), RefreshTokenLength*2)
		}
	})

	t.Run("two calls produce different tokens", func(t *testing.T) {
		token1, _, _ := GenerateRefreshToken()
		token2, _, _ := GenerateRefreshToken()
		if token1 == token2 {
			t.Error("GenerateRefreshToken() produced identical tokens on consecutive calls")
		}
	})
}

func TestHashRefreshToken(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		if HashRefreshToken("abc") != HashRefreshToken("abc") {
			t.Error("HashRefreshToken() is not deterministic")
		}
	})

	t.Run("different inputs produce different digests", func(t *testing.T) {
		if HashRefreshToken("abc") == HashRefreshToken("abd") {
			t.Error("HashRefreshToken() collided on different inputs")
		}
	})
}
