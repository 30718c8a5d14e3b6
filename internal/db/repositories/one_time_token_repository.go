// one_time_token_repository.go implements OneTimeTokenRepository. The table is
// the authority for every token's lifecycle: Replace enforces at most one live
// token per (user, app), and Consume is a single conditional UPDATE so that
// concurrent validations of the same token produce exactly one winner.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/nexin-gg/nexin-backend/internal/db/models"
)

// OneTimeTokenRepository handles one-time token database operations
type OneTimeTokenRepository struct {
	db *sql.DB
}

// NewOneTimeTokenRepository creates a new OneTimeTokenRepository
func NewOneTimeTokenRepository(db *sql.DB) *OneTimeTokenRepository {
	return &OneTimeTokenRepository{db: db}
}

// Replace installs the new token for the (user, app) pair, superseding any
// existing row. The upsert is keyed on the (user_id, app_id) unique index, so
// concurrent issuances for the same pair are race-free: the later writer
// overwrites the earlier row instead of tripping the index.
func (r *OneTimeTokenRepository) Replace(ctx context.Context, token *models.OneTimeToken) error {
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO one_time_tokens (jti, user_id, app_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, app_id) DO UPDATE
		SET jti = EXCLUDED.jti,
		    consumed_at = NULL,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(ctx, query,
		token.JTI,
		token.UserID,
		token.AppID,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return err
}

// Consume atomically marks a live token as consumed and returns it. At most
// one caller wins per jti; every other caller gets (nil, nil) and should
// inspect the row with GetByJTI to classify the failure.
func (r *OneTimeTokenRepository) Consume(ctx context.Context, jti string) (*models.OneTimeToken, error) {
	query := `
		UPDATE one_time_tokens
		SET consumed_at = NOW()
		WHERE jti = $1 AND consumed_at IS NULL AND expires_at > NOW()
		RETURNING jti, user_id, app_id, consumed_at, expires_at, created_at
	`

	token := &models.OneTimeToken{}
	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&token.JTI,
		&token.UserID,
		&token.AppID,
		&token.ConsumedAt,
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

// GetByJTI retrieves a token row regardless of state. Used to distinguish
// consumed, expired, and superseded tokens after a failed Consume.
func (r *OneTimeTokenRepository) GetByJTI(ctx context.Context, jti string) (*models.OneTimeToken, error) {
	query := `
		SELECT jti, user_id, app_id, consumed_at, expires_at, created_at
		FROM one_time_tokens
		WHERE jti = $1
	`

	token := &models.OneTimeToken{}
	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&token.JTI,
		&token.UserID,
		&token.AppID,
		&token.ConsumedAt,
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

// DeleteExpired removes tokens past their expiry, returning the count
func (r *OneTimeTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM one_time_tokens WHERE expires_at < NOW()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
