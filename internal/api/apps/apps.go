// apps.go implements handlers for registered application CRUD, secret
// rotation, and app-secret authentication. Mutation is restricted to the
// owning user; every authenticated user can read.
package apps

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexin-gg/nexin-backend/internal/auth"
	"github.com/nexin-gg/nexin-backend/internal/config"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
	"github.com/nexin-gg/nexin-backend/pkg/apperrors"
)

// MaxAppNameLength is the maximum accepted app name length
const MaxAppNameLength = 64

// AppHandlers handles app management endpoints
type AppHandlers struct {
	cfg     *config.Config
	db      *sql.DB
	appRepo *repositories.AppRepository
}

// NewAppHandlers creates a new AppHandlers instance
func NewAppHandlers(cfg *config.Config, db *sql.DB) *AppHandlers {
	return &AppHandlers{
		cfg:     cfg,
		db:      db,
		appRepo: repositories.NewAppRepository(db),
	}
}

// appResponse is the read representation of an app. It never carries the
// secret; the plaintext appears only in create and rotate responses.
type appResponse struct {
	ID             string    `json:"id"`
	AppName        string    `json:"app_name"`
	AppDescription *string   `json:"app_description,omitempty"`
	SecretPrefix   string    `json:"secret_prefix"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAppResponse(a *models.App) appResponse {
	return appResponse{
		ID:             a.ID,
		AppName:        a.AppName,
		AppDescription: a.AppDescription,
		SecretPrefix:   a.SecretPrefix,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// requireOwnedApp loads the app and verifies the requester owns it.
// Responds and returns nil when the app is missing or owned by someone else.
func (h *AppHandlers) requireOwnedApp(c *gin.Context, appID string) *models.App {
	app, err := h.appRepo.GetAppByID(c.Request.Context(), appID)
	if err != nil {
		apperrors.Respond(c, apperrors.Internal(err))
		return nil
	}
	if app == nil {
		apperrors.Respond(c, apperrors.ErrAppNotFound)
		return nil
	}
	if app.CreatedBy != c.GetString("user_id") {
		apperrors.Respond(c, apperrors.ErrNotOwner)
		return nil
	}
	return app
}

// @Summary      List apps
// @Description  Get all registered apps. Requires a session.
// @Tags         Apps
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "apps"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps [get]
// ListAppsHandler lists all registered apps
// GET /api/v1/apps
func (h *AppHandlers) ListAppsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := h.appRepo.ListApps(c.Request.Context())
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		out := make([]appResponse, 0, len(apps))
		for _, app := range apps {
			out = append(out, toAppResponse(app))
		}

		c.JSON(http.StatusOK, gin.H{"apps": out})
	}
}

// @Summary      Register app
// @Description  Register a new app. The response carries the plaintext secret exactly once.
// @Tags         Apps
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "app_name, app_description (optional)"
// @Success      201  {object}  map[string]interface{}  "app, secret"
// @Failure      400  {object}  map[string]interface{}  "Missing or invalid app_name"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/apps [post]
// CreateAppHandler registers a new app owned by the requester
// POST /api/v1/apps
func (h *AppHandlers) CreateAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AppName        string  `json:"app_name"`
			AppDescription *string `json:"app_description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid request body"))
			return
		}
		if req.AppName == "" {
			apperrors.Respond(c, apperrors.Validation("app_name is required"))
			return
		}
		if len(req.AppName) > MaxAppNameLength {
			apperrors.Respond(c, apperrors.Validation("app_name is too long"))
			return
		}

		secret, hash, displayPrefix, err := auth.GenerateAppSecret(h.cfg.Auth.SecretPrefix)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		app := &models.App{
			AppName:        req.AppName,
			AppDescription: req.AppDescription,
			SecretHash:     hash,
			SecretPrefix:   displayPrefix,
			CreatedBy:      c.GetString("user_id"),
		}
		if err := h.appRepo.CreateApp(c.Request.Context(), app); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		// The plaintext secret is returned here and never again.
		c.JSON(http.StatusCreated, gin.H{
			"app":    toAppResponse(app),
			"secret": secret,
		})
	}
}

// @Summary      Get app
// @Description  Get an app by ID. Requires a session.
// @Tags         Apps
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "app"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id} [get]
// GetAppHandler retrieves an app by ID
// GET /api/v1/apps/:id
func (h *AppHandlers) GetAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app, err := h.appRepo.GetAppByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if app == nil {
			apperrors.Respond(c, apperrors.ErrAppNotFound)
			return
		}

		c.JSON(http.StatusOK, gin.H{"app": toAppResponse(app)})
	}
}

// @Summary      Update app
// @Description  Update an app's name and description. Owner only.
// @Tags         Apps
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string  true  "App ID"
// @Param        request  body  object  true  "app_name, app_description (optional)"
// @Success      200  {object}  map[string]interface{}  "app"
// @Failure      400  {object}  map[string]interface{}  "Missing or invalid app_name"
// @Failure      403  {object}  map[string]interface{}  "Not the owner"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id} [put]
// UpdateAppHandler updates an app's metadata. Owner only.
// PUT /api/v1/apps/:id
func (h *AppHandlers) UpdateAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AppName        string  `json:"app_name"`
			AppDescription *string `json:"app_description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid request body"))
			return
		}
		if req.AppName == "" {
			apperrors.Respond(c, apperrors.Validation("app_name is required"))
			return
		}
		if len(req.AppName) > MaxAppNameLength {
			apperrors.Respond(c, apperrors.Validation("app_name is too long"))
			return
		}

		app := h.requireOwnedApp(c, c.Param("id"))
		if app == nil {
			return
		}

		app.AppName = req.AppName
		app.AppDescription = req.AppDescription
		if err := h.appRepo.UpdateApp(c.Request.Context(), app); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"app": toAppResponse(app)})
	}
}

// @Summary      Delete app
// @Description  Delete an app and everything hanging off it. Owner only.
// @Tags         Apps
// @Security     Bearer
// @Param        id  path  string  true  "App ID"
// @Success      204  "Deleted"
// @Failure      403  {object}  map[string]interface{}  "Not the owner"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id} [delete]
// DeleteAppHandler deletes an app. Owner only.
// DELETE /api/v1/apps/:id
func (h *AppHandlers) DeleteAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.requireOwnedApp(c, c.Param("id"))
		if app == nil {
			return
		}

		if err := h.appRepo.DeleteApp(c.Request.Context(), app.ID); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary      Rotate app secret
// @Description  Replace the app secret. The old secret stops verifying immediately; the new plaintext appears in this response exactly once. Owner only.
// @Tags         Apps
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "App ID"
// @Success      200  {object}  map[string]interface{}  "app, secret"
// @Failure      403  {object}  map[string]interface{}  "Not the owner"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id}/secret [post]
// RotateSecretHandler rotates the app secret. Owner only.
// POST /api/v1/apps/:id/secret
func (h *AppHandlers) RotateSecretHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		app := h.requireOwnedApp(c, c.Param("id"))
		if app == nil {
			return
		}

		secret, hash, displayPrefix, err := auth.GenerateAppSecret(h.cfg.Auth.SecretPrefix)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		if err := h.appRepo.UpdateSecretHash(c.Request.Context(), app.ID, hash, displayPrefix); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		app.SecretHash = hash
		app.SecretPrefix = displayPrefix

		c.JSON(http.StatusOK, gin.H{
			"app":    toAppResponse(app),
			"secret": secret,
		})
	}
}

// @Summary      Authenticate app
// @Description  Verify an app secret against the stored hash. No session required.
// @Tags         Apps
// @Accept       json
// @Produce      json
// @Param        id       path  string  true  "App ID"
// @Param        request  body  object  true  "secret"
// @Success      200  {object}  map[string]interface{}  "app_id, app_name, authenticated"
// @Failure      400  {object}  map[string]interface{}  "Missing secret"
// @Failure      401  {object}  map[string]interface{}  "Wrong secret"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Router       /api/v1/apps/{id}/authenticate [post]
// AuthenticateAppHandler verifies an app's secret
// POST /api/v1/apps/:id/authenticate
func (h *AppHandlers) AuthenticateAppHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Secret string `json:"secret"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Secret == "" {
			apperrors.Respond(c, apperrors.Validation("secret is required"))
			return
		}

		app, err := h.appRepo.GetAppByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if app == nil {
			apperrors.Respond(c, apperrors.ErrAppNotFound)
			return
		}

		if !auth.VerifyAppSecret(req.Secret, app.SecretHash) {
			apperrors.Respond(c, apperrors.ErrInvalidCredentials)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"app_id":        app.ID,
			"app_name":      app.AppName,
			"authenticated": true,
		})
	}
}
