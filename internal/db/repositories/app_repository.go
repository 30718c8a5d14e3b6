// app_repository.go implements AppRepository, providing database queries for
// registered applications: creation, lookup, listing by owner, secret rotation,
// and deletion.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
)

// AppRepository handles app database operations
type AppRepository struct {
	db *sql.DB
}

// NewAppRepository creates a new AppRepository
func NewAppRepository(db *sql.DB) *AppRepository {
	return &AppRepository{db: db}
}

// CreateApp creates a new app
func (r *AppRepository) CreateApp(ctx context.Context, app *models.App) error {
	app.ID = uuid.New().String()
	app.CreatedAt = time.Now()
	app.UpdatedAt = time.Now()

	query := `
		INSERT INTO apps (id, app_name, app_description, secret_hash, secret_prefix, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.AppName,
		app.AppDescription,
		app.SecretHash,
		app.SecretPrefix,
		app.CreatedBy,
		app.CreatedAt,
		app.UpdatedAt,
	)

	return err
}

// GetAppByID retrieves an app by ID
func (r *AppRepository) GetAppByID(ctx context.Context, appID string) (*models.App, error) {
	query := `
		SELECT id, app_name, app_description, secret_hash, secret_prefix, created_by, created_at, updated_at
		FROM apps
		WHERE id = $1
	`

	app := &models.App{}
	err := r.db.QueryRowContext(ctx, query, appID).Scan(
		&app.ID,
		&app.AppName,
		&app.AppDescription,
		&app.SecretHash,
		&app.SecretPrefix,
		&app.CreatedBy,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return app, nil
}

// ListApps retrieves all registered apps, newest first
func (r *AppRepository) ListApps(ctx context.Context) ([]*models.App, error) {
	query := `
		SELECT id, app_name, app_description, secret_hash, secret_prefix, created_by, created_at, updated_at
		FROM apps
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]*models.App, 0)
	for rows.Next() {
		app := &models.App{}
		err := rows.Scan(
			&app.ID,
			&app.AppName,
			&app.AppDescription,
			&app.SecretHash,
			&app.SecretPrefix,
			&app.CreatedBy,
			&app.CreatedAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

// ListAppsByOwner retrieves all apps created by a user, newest first
func (r *AppRepository) ListAppsByOwner(ctx context.Context, userID string) ([]*models.App, error) {
	query := `
		SELECT id, app_name, app_description, secret_hash, secret_prefix, created_by, created_at, updated_at
		FROM apps
		WHERE created_by = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]*models.App, 0)
	for rows.Next() {
		app := &models.App{}
		err := rows.Scan(
			&app.ID,
			&app.AppName,
			&app.AppDescription,
			&app.SecretHash,
			&app.SecretPrefix,
			&app.CreatedBy,
			&app.CreatedAt,
			&app.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

// UpdateApp updates an app's name and description
func (r *AppRepository) UpdateApp(ctx context.Context, app *models.App) error {
	app.UpdatedAt = time.Now()

	query := `
		UPDATE apps
		SET app_name = $2, app_description = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.AppName,
		app.AppDescription,
		app.UpdatedAt,
	)

	return err
}

// UpdateSecretHash replaces an app's secret hash and display prefix.
// Validation against the old secret fails immediately after this commits.
func (r *AppRepository) UpdateSecretHash(ctx context.Context, appID, secretHash, secretPrefix string) error {
	query := `
		UPDATE apps
		SET secret_hash = $2, secret_prefix = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, appID, secretHash, secretPrefix, time.Now())
	return err
}

// DeleteApp deletes an app (cascades to servers and one-time tokens)
func (r *AppRepository) DeleteApp(ctx context.Context, appID string) error {
	query := `DELETE FROM apps WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, appID)
	return err
}
