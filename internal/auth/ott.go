// Package auth - ott.go handles the signed one-time token format.
//
// A one-time token is an HS256 JWT carrying a jti plus the (user, app)
// delegation it represents. The signature proves the server minted the token,
// but possession alone is not validity: the authoritative consumption and
// supersession state lives in the one_time_tokens table, keyed by jti.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOneTimeTokenExpired is returned by ParseOneTimeToken when the token's
// signature is valid but its expiry has passed.
var ErrOneTimeTokenExpired = errors.New("one-time token has expired")

// OneTimeTokenClaims represents the claims embedded in a one-time token
type OneTimeTokenClaims struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
	jwt.RegisteredClaims
}

// GenerateOneTimeToken creates a signed one-time token. The jti must match
// the identifier of the server-side token record.
func GenerateOneTimeToken(jti, userID, appID string, expiresIn time.Duration) (string, error) {
	now := time.Now()

	claims := &OneTimeTokenClaims{
		UserID: userID,
		AppID:  appID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "nexin-backend",
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := GetJWTSecret()

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseOneTimeToken parses and verifies a one-time token string.
// Expired tokens are reported as ErrOneTimeTokenExpired so callers can
// distinguish expiry from a malformed or forged token.
func ParseOneTimeToken(tokenString string) (*OneTimeTokenClaims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &OneTimeTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrOneTimeTokenExpired
		}
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*OneTimeTokenClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	if claims.ID == "" {
		return nil, errors.New("token has no jti")
	}

	return claims, nil
}
