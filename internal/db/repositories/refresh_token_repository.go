// refresh_token_repository.go implements RefreshTokenRepository. Rotation is a
// single conditional UPDATE so that concurrent presentations of the same token
// produce exactly one winner; the losers observe an already-revoked row, which
// the session layer treats as token reuse.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
)

// RefreshTokenRepository handles refresh token database operations
type RefreshTokenRepository struct {
	db *sql.DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository
func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// CreateRefreshToken stores a new refresh token
func (r *RefreshTokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, revoked, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.Revoked,
		token.ExpiresAt,
		token.CreatedAt,
	)

	return err
}

// GetByTokenHash retrieves a refresh token row by its hash, regardless of state
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, revoked, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.Revoked,
		&token.ExpiresAt,
		&token.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return token, nil
}

// Rotate atomically revokes a live token and returns it. At most one caller
// wins per token; every other caller gets (nil, nil).
func (r *RefreshTokenRepository) Rotate(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > NOW()
		RETURNING id, user_id, token_hash, revoked, expires_at, created_at
	`

	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.Revoked,
		&token.ExpiresAt,
		&token.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return token, nil
}

// Revoke revokes a single refresh token by hash. Idempotent: revoking an
// unknown or already-revoked token affects no rows and is not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE
	`

	_, err := r.db.ExecContext(ctx, query, tokenHash)
	return err
}

// RevokeAllForUser revokes every live refresh token belonging to a user.
// Used when token reuse is detected.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteExpired removes refresh tokens past their expiry, returning the count
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
