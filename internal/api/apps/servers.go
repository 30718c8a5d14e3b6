// servers.go implements the game server directory nested under apps. Any
// session can read; mutation requires being the server's creator or the
// owner of the app it belongs to.
package apps

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nexin-gg/nexin-backend/internal/config"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
	"github.com/nexin-gg/nexin-backend/pkg/apperrors"
)

// MaxServerNameLength is the maximum accepted server name length
const MaxServerNameLength = 64

// ServerHandlers handles the game server directory endpoints
type ServerHandlers struct {
	cfg        *config.Config
	db         *sql.DB
	appRepo    *repositories.AppRepository
	serverRepo *repositories.ServerRepository
}

// NewServerHandlers creates a new ServerHandlers instance
func NewServerHandlers(cfg *config.Config, db *sql.DB, sqlxDB *sqlx.DB) *ServerHandlers {
	return &ServerHandlers{
		cfg:        cfg,
		db:         db,
		appRepo:    repositories.NewAppRepository(db),
		serverRepo: repositories.NewServerRepository(sqlxDB),
	}
}

// serverResponse is the read representation of a registered game server
type serverResponse struct {
	ID                string    `json:"id"`
	AppID             string    `json:"app_id"`
	ServerName        string    `json:"server_name"`
	ServerDescription *string   `json:"server_description,omitempty"`
	GameModes         []string  `json:"game_modes"`
	IPAddress         *string   `json:"ip_address,omitempty"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toServerResponse(s *models.Server) (serverResponse, error) {
	modes, err := s.GameModeList()
	if err != nil {
		return serverResponse{}, err
	}
	return serverResponse{
		ID:                s.ID.String(),
		AppID:             s.AppID.String(),
		ServerName:        s.ServerName,
		ServerDescription: s.ServerDescription,
		GameModes:         modes,
		IPAddress:         s.IPAddress,
		CreatedBy:         s.CreatedBy.String(),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}, nil
}

// serverRequest is the write payload for create and update
type serverRequest struct {
	ServerName        string   `json:"server_name"`
	ServerDescription *string  `json:"server_description"`
	GameModes         []string `json:"game_modes"`
}

func (r *serverRequest) validate() error {
	if r.ServerName == "" {
		return apperrors.Validation("server_name is required")
	}
	if len(r.ServerName) > MaxServerNameLength {
		return apperrors.Validation("server_name is too long")
	}
	return nil
}

// loadApp resolves the :id path parameter to an app, responding on failure.
func (h *ServerHandlers) loadApp(c *gin.Context) *models.App {
	app, err := h.appRepo.GetAppByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperrors.Respond(c, apperrors.Internal(err))
		return nil
	}
	if app == nil {
		apperrors.Respond(c, apperrors.ErrAppNotFound)
		return nil
	}
	return app
}

// loadServer resolves the :serverID path parameter to a server belonging to
// the given app, responding on failure.
func (h *ServerHandlers) loadServer(c *gin.Context, app *models.App) *models.Server {
	serverID, err := uuid.Parse(c.Param("serverID"))
	if err != nil {
		apperrors.Respond(c, apperrors.Validation("invalid server id"))
		return nil
	}

	server, err := h.serverRepo.GetServer(c.Request.Context(), serverID)
	if err != nil {
		apperrors.Respond(c, apperrors.Internal(err))
		return nil
	}
	if server == nil || server.AppID.String() != app.ID {
		apperrors.Respond(c, apperrors.ErrServerNotFound)
		return nil
	}
	return server
}

// canMutateServer reports whether the requester created the server or owns
// the app.
func canMutateServer(c *gin.Context, app *models.App, server *models.Server) bool {
	userID := c.GetString("user_id")
	return server.CreatedBy.String() == userID || app.CreatedBy == userID
}

// @Summary      List servers
// @Description  List all game servers registered under an app. Requires a session.
// @Tags         Servers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "servers"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id}/servers [get]
// ListServersHandler lists an app's registered servers
// GET /api/v1/apps/:id/servers
func (h *ServerHandlers) ListServersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}

		appID, err := uuid.Parse(app.ID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		servers, err := h.serverRepo.ListServersByApp(c.Request.Context(), appID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		out := make([]serverResponse, 0, len(servers))
		for _, server := range servers {
			resp, err := toServerResponse(server)
			if err != nil {
				apperrors.Respond(c, apperrors.Internal(err))
				return
			}
			out = append(out, resp)
		}

		c.JSON(http.StatusOK, gin.H{"servers": out})
	}
}

// @Summary      Register server
// @Description  Register a game server under an app. The server's IP is recorded from the request.
// @Tags         Servers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string  true  "App ID"
// @Param        request  body  object  true  "server_name, server_description (optional), game_modes (optional)"
// @Success      201  {object}  map[string]interface{}  "server"
// @Failure      400  {object}  map[string]interface{}  "Invalid input"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id}/servers [post]
// CreateServerHandler registers a game server under an app
// POST /api/v1/apps/:id/servers
func (h *ServerHandlers) CreateServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req serverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid request body"))
			return
		}
		if err := req.validate(); err != nil {
			apperrors.Respond(c, err)
			return
		}

		app := h.loadApp(c)
		if app == nil {
			return
		}

		appID, err := uuid.Parse(app.ID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		createdBy, err := uuid.Parse(c.GetString("user_id"))
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		ip := c.ClientIP()
		server := &models.Server{
			AppID:             appID,
			ServerName:        req.ServerName,
			ServerDescription: req.ServerDescription,
			IPAddress:         &ip,
			CreatedBy:         createdBy,
		}
		if err := server.SetGameModes(req.GameModes); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid game_modes"))
			return
		}

		if err := h.serverRepo.CreateServer(c.Request.Context(), server); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		resp, err := toServerResponse(server)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.JSON(http.StatusCreated, gin.H{"server": resp})
	}
}

// @Summary      Get server
// @Description  Get a registered game server. Requires a session.
// @Tags         Servers
// @Security     Bearer
// @Produce      json
// @Param        id        path  string  true  "App ID"
// @Param        serverID  path  string  true  "Server ID"
// @Success      200  {object}  map[string]interface{}  "server"
// @Failure      404  {object}  map[string]interface{}  "App or server not found"
// @Router       /api/v1/apps/{id}/servers/{serverID} [get]
// GetServerHandler retrieves a registered server
// GET /api/v1/apps/:id/servers/:serverID
func (h *ServerHandlers) GetServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}
		server := h.loadServer(c, app)
		if server == nil {
			return
		}

		resp, err := toServerResponse(server)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"server": resp})
	}
}

// @Summary      Update server
// @Description  Update a registered server. Creator or app owner only.
// @Tags         Servers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id        path  string  true  "App ID"
// @Param        serverID  path  string  true  "Server ID"
// @Param        request   body  object  true  "server_name, server_description (optional), game_modes (optional)"
// @Success      200  {object}  map[string]interface{}  "server"
// @Failure      403  {object}  map[string]interface{}  "Not the creator or app owner"
// @Failure      404  {object}  map[string]interface{}  "App or server not found"
// @Router       /api/v1/apps/{id}/servers/{serverID} [put]
// UpdateServerHandler updates a registered server. Creator or app owner only.
// PUT /api/v1/apps/:id/servers/:serverID
func (h *ServerHandlers) UpdateServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req serverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid request body"))
			return
		}
		if err := req.validate(); err != nil {
			apperrors.Respond(c, err)
			return
		}

		app := h.loadApp(c)
		if app == nil {
			return
		}
		server := h.loadServer(c, app)
		if server == nil {
			return
		}
		if !canMutateServer(c, app, server) {
			apperrors.Respond(c, apperrors.New(apperrors.CodeForbidden, "only the server's creator or the app owner may modify it"))
			return
		}

		server.ServerName = req.ServerName
		server.ServerDescription = req.ServerDescription
		if err := server.SetGameModes(req.GameModes); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid game_modes"))
			return
		}

		if err := h.serverRepo.UpdateServer(c.Request.Context(), server); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		resp, err := toServerResponse(server)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"server": resp})
	}
}

// @Summary      Delete server
// @Description  Delete a registered server. Creator or app owner only.
// @Tags         Servers
// @Security     Bearer
// @Param        id        path  string  true  "App ID"
// @Param        serverID  path  string  true  "Server ID"
// @Success      204  "Deleted"
// @Failure      403  {object}  map[string]interface{}  "Not the creator or app owner"
// @Failure      404  {object}  map[string]interface{}  "App or server not found"
// @Router       /api/v1/apps/{id}/servers/{serverID} [delete]
// DeleteServerHandler deletes a registered server. Creator or app owner only.
// DELETE /api/v1/apps/:id/servers/:serverID
func (h *ServerHandlers) DeleteServerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.loadApp(c)
		if app == nil {
			return
		}
		server := h.loadServer(c, app)
		if server == nil {
			return
		}
		if !canMutateServer(c, app, server) {
			apperrors.Respond(c, apperrors.New(apperrors.CodeForbidden, "only the server's creator or the app owner may modify it"))
			return
		}

		if err := h.serverRepo.DeleteServer(c.Request.Context(), server.ID); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}
