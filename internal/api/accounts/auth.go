// auth.go implements HTTP handlers for account registration, login, session
// refresh, logout, and the authenticated profile endpoint.
package accounts

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/nexin-gg/nexin-backend/internal/auth"
	"github.com/nexin-gg/nexin-backend/internal/config"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
	"github.com/nexin-gg/nexin-backend/internal/safego"
	"github.com/nexin-gg/nexin-backend/internal/telemetry"
	"github.com/nexin-gg/nexin-backend/internal/validation"
	"github.com/nexin-gg/nexin-backend/pkg/apperrors"
)

// AuthHandlers handles account and session endpoints
type AuthHandlers struct {
	cfg         *config.Config
	db          *sql.DB
	userRepo    *repositories.UserRepository
	refreshRepo *repositories.RefreshTokenRepository
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.Config, db *sql.DB) *AuthHandlers {
	return &AuthHandlers{
		cfg:         cfg,
		db:          db,
		userRepo:    repositories.NewUserRepository(db),
		refreshRepo: repositories.NewRefreshTokenRepository(db),
	}
}

// sessionResponse is the token pair returned by register, login, and refresh
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// userResponse is the read representation of a user account
type userResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// issueSession creates a new access/refresh token pair for the user and
// persists the refresh token's digest.
func (h *AuthHandlers) issueSession(ctx context.Context, user *models.User) (*sessionResponse, error) {
	accessToken, err := auth.GenerateAccessToken(user.ID, user.Username, h.cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, digest, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: digest,
		ExpiresAt: time.Now().Add(h.cfg.Auth.RefreshTokenTTL),
	}
	if err := h.refreshRepo.CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return &sessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.cfg.Auth.AccessTokenTTL.Seconds()),
	}, nil
}

// uniqueViolationError maps a Postgres unique constraint violation to the
// matching conflict error, or nil when err is not one. Registration races
// past the pre-insert existence checks land here; the constraint name says
// which column tripped.
func uniqueViolationError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return nil
	}
	if pqErr.Constraint == "idx_users_email" {
		return apperrors.ErrEmailTaken
	}
	return apperrors.ErrUsernameTaken
}

// @Summary      Register account
// @Description  Create a new user account and immediately issue a session
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "email, username, password"
// @Success      201  {object}  map[string]interface{}  "user, session"
// @Failure      400  {object}  map[string]interface{}  "Invalid email, username, or password"
// @Failure      409  {object}  map[string]interface{}  "Email or username already taken"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/register [post]
// RegisterHandler creates a user account and issues a session
// POST /api/v1/auth/register
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid request body"))
			return
		}

		if err := validation.ValidateEmail(req.Email); err != nil {
			apperrors.Respond(c, apperrors.Validation(err.Error()))
			return
		}
		if err := validation.ValidateUsername(req.Username); err != nil {
			apperrors.Respond(c, apperrors.Validation(err.Error()))
			return
		}
		if err := validation.ValidatePassword(req.Password, h.cfg.Auth.MinPasswordLength); err != nil {
			apperrors.Respond(c, apperrors.Validation(err.Error()))
			return
		}

		ctx := c.Request.Context()

		existing, err := h.userRepo.GetUserByUsername(ctx, req.Username)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if existing != nil {
			apperrors.Respond(c, apperrors.ErrUsernameTaken)
			return
		}

		existing, err = h.userRepo.GetUserByEmail(ctx, req.Email)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if existing != nil {
			apperrors.Respond(c, apperrors.ErrEmailTaken)
			return
		}

		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		user := &models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: passwordHash,
		}
		if err := h.userRepo.CreateUser(ctx, user); err != nil {
			if conflict := uniqueViolationError(err); conflict != nil {
				apperrors.Respond(c, conflict)
				return
			}
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		session, err := h.issueSession(ctx, user)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		telemetry.SessionsIssuedTotal.WithLabelValues("register").Inc()

		c.JSON(http.StatusCreated, gin.H{
			"user":    toUserResponse(user),
			"session": session,
		})
	}
}

// @Summary      Log in
// @Description  Exchange username-or-email plus password for a session
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "identifier, password"
// @Success      200  {object}  map[string]interface{}  "user, session"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user by username or email
// POST /api/v1/auth/login
//
// Unknown identifiers and wrong passwords produce the same response body and
// comparable latency: when no user matches, a bcrypt comparison still runs
// against a decoy hash.
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, apperrors.Validation("invalid request body"))
			return
		}
		if req.Identifier == "" || req.Password == "" {
			apperrors.Respond(c, apperrors.Validation("identifier and password are required"))
			return
		}

		ctx := c.Request.Context()

		user, err := h.userRepo.FindByUsernameOrEmail(ctx, req.Identifier)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		var ok bool
		if user == nil {
			ok = auth.CheckPasswordDecoy(req.Password)
		} else {
			ok = auth.CheckPassword(req.Password, user.PasswordHash)
		}
		if !ok {
			telemetry.LoginFailuresTotal.Inc()
			apperrors.Respond(c, apperrors.ErrInvalidCredentials)
			return
		}

		session, err := h.issueSession(ctx, user)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		// Recorded off the request path so login latency is not coupled to
		// the write.
		userID := user.ID
		loginAt := time.Now()
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = h.userRepo.UpdateLastLogin(ctx, userID, loginAt)
		})

		telemetry.SessionsIssuedTotal.WithLabelValues("login").Inc()

		c.JSON(http.StatusOK, gin.H{
			"user":    toUserResponse(user),
			"session": session,
		})
	}
}

// @Summary      Refresh session
// @Description  Rotate a refresh token for a new access/refresh token pair
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "refresh_token"
// @Success      200  {object}  map[string]interface{}  "session"
// @Failure      401  {object}  map[string]interface{}  "Invalid, expired, or already-used refresh token"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/refresh [post]
// RefreshHandler rotates a refresh token
// POST /api/v1/auth/refresh
//
// Rotation is a single conditional UPDATE, so two concurrent refreshes with
// the same token yield exactly one new session. Presenting an
// already-rotated token is treated as reuse and revokes the user's entire
// refresh lineage.
func (h *AuthHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			apperrors.Respond(c, apperrors.Validation("refresh_token is required"))
			return
		}

		ctx := c.Request.Context()
		digest := auth.HashRefreshToken(req.RefreshToken)

		rotated, err := h.refreshRepo.Rotate(ctx, digest)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if rotated == nil {
			// Rotation failed: the token is unknown, expired, or already
			// rotated. Only the last case is reuse worth reacting to.
			record, err := h.refreshRepo.GetByTokenHash(ctx, digest)
			if err != nil {
				apperrors.Respond(c, apperrors.Internal(err))
				return
			}
			if record != nil && record.Revoked {
				telemetry.RefreshReuseDetectedTotal.Inc()
				if _, err := h.refreshRepo.RevokeAllForUser(ctx, record.UserID); err != nil {
					apperrors.Respond(c, apperrors.Internal(err))
					return
				}
			}
			apperrors.Respond(c, apperrors.ErrInvalidToken)
			return
		}

		user, err := h.userRepo.GetUserByID(ctx, rotated.UserID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if user == nil {
			apperrors.Respond(c, apperrors.ErrInvalidToken)
			return
		}

		session, err := h.issueSession(ctx, user)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		telemetry.SessionsIssuedTotal.WithLabelValues("refresh").Inc()

		c.JSON(http.StatusOK, gin.H{
			"session": session,
		})
	}
}

// @Summary      Log out
// @Description  Revoke the presented refresh token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "refresh_token"
// @Success      204  "Token revoked (or was already invalid)"
// @Failure      400  {object}  map[string]interface{}  "Missing refresh_token"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/logout [post]
// LogoutHandler revokes a refresh token. Idempotent.
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			apperrors.Respond(c, apperrors.Validation("refresh_token is required"))
			return
		}

		digest := auth.HashRefreshToken(req.RefreshToken)
		if err := h.refreshRepo.Revoke(c.Request.Context(), digest); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary      Current user
// @Description  Return the authenticated user's profile
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the authenticated user's profile
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user")
		if !exists {
			apperrors.AbortUnauthorized(c, "Authentication required")
			return
		}
		user, ok := value.(*models.User)
		if !ok {
			apperrors.AbortUnauthorized(c, "Authentication required")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": toUserResponse(user),
		})
	}
}
