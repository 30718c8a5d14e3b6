// server_repository.go implements ServerRepository, providing database queries
// for game servers registered under apps.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
)

// ServerRepository handles database operations for registered game servers
type ServerRepository struct {
	db *sqlx.DB
}

// NewServerRepository creates a new server repository
func NewServerRepository(db *sqlx.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

// CreateServer creates a new server record
func (r *ServerRepository) CreateServer(ctx context.Context, server *models.Server) error {
	server.ID = uuid.New()
	server.CreatedAt = time.Now()
	server.UpdatedAt = time.Now()

	query := `
		INSERT INTO servers (
			id, app_id, server_name, server_description, game_modes,
			ip_address, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.ExecContext(ctx, query,
		server.ID, server.AppID, server.ServerName, server.ServerDescription,
		server.GameModes, server.IPAddress, server.CreatedBy,
		server.CreatedAt, server.UpdatedAt,
	)
	return err
}

// GetServer retrieves a server by ID
func (r *ServerRepository) GetServer(ctx context.Context, id uuid.UUID) (*models.Server, error) {
	var server models.Server
	query := `SELECT * FROM servers WHERE id = $1`
	err := r.db.GetContext(ctx, &server, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &server, err
}

// ListServersByApp lists all servers registered under an app
func (r *ServerRepository) ListServersByApp(ctx context.Context, appID uuid.UUID) ([]*models.Server, error) {
	var servers []*models.Server
	query := `SELECT * FROM servers WHERE app_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &servers, query, appID)
	return servers, err
}

// UpdateServer updates a server's mutable fields
func (r *ServerRepository) UpdateServer(ctx context.Context, server *models.Server) error {
	query := `
		UPDATE servers SET
			server_name = $2, server_description = $3, game_modes = $4,
			ip_address = $5, updated_at = $6
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		server.ID, server.ServerName, server.ServerDescription,
		server.GameModes, server.IPAddress, time.Now(),
	)
	return err
}

// DeleteServer deletes a server
func (r *ServerRepository) DeleteServer(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM servers WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
