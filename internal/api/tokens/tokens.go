// tokens.go implements one-time token issuance and validation. The token
// string is a signed JWT, but the database row is the authority: issuing
// retires any live token for the same (user, app) pair, and validation
// consumes the row atomically so it succeeds exactly once.
package tokens

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexin-gg/nexin-backend/internal/auth"
	"github.com/nexin-gg/nexin-backend/internal/config"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
	"github.com/nexin-gg/nexin-backend/internal/telemetry"
	"github.com/nexin-gg/nexin-backend/pkg/apperrors"
)

// TokenHandlers handles one-time token endpoints
type TokenHandlers struct {
	cfg      *config.Config
	db       *sql.DB
	appRepo  *repositories.AppRepository
	userRepo *repositories.UserRepository
	ottRepo  *repositories.OneTimeTokenRepository
}

// NewTokenHandlers creates a new TokenHandlers instance
func NewTokenHandlers(cfg *config.Config, db *sql.DB) *TokenHandlers {
	return &TokenHandlers{
		cfg:      cfg,
		db:       db,
		appRepo:  repositories.NewAppRepository(db),
		userRepo: repositories.NewUserRepository(db),
		ottRepo:  repositories.NewOneTimeTokenRepository(db),
	}
}

// @Summary      Issue one-time token
// @Description  Mint a short-lived single-use token delegating the session's identity to an app. Any still-live token for the same (user, app) pair is retired.
// @Tags         Tokens
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "app_id"
// @Success      201  {object}  map[string]interface{}  "token, expires_in"
// @Failure      400  {object}  map[string]interface{}  "Missing app_id"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "App not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/tokens [post]
// IssueHandler mints a one-time token for the session user and an app
// POST /api/v1/tokens
//
// Ownership of the app is not required: the token delegates the user's
// identity, not the app's.
func (h *TokenHandlers) IssueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			AppID string `json:"app_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.AppID == "" {
			apperrors.Respond(c, apperrors.Validation("app_id is required"))
			return
		}

		ctx := c.Request.Context()
		userID := c.GetString("user_id")

		app, err := h.appRepo.GetAppByID(ctx, req.AppID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if app == nil {
			apperrors.Respond(c, apperrors.ErrAppNotFound)
			return
		}

		ttl := h.cfg.Auth.OneTimeTokenTTL
		record := &models.OneTimeToken{
			JTI:       uuid.New().String(),
			UserID:    userID,
			AppID:     app.ID,
			ExpiresAt: time.Now().Add(ttl),
		}

		// Supersession and insertion are a single upsert: from here on only
		// this jti is redeemable for the pair.
		if err := h.ottRepo.Replace(ctx, record); err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		token, err := auth.GenerateOneTimeToken(record.JTI, userID, app.ID, ttl)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}

		telemetry.OneTimeTokensIssuedTotal.Inc()

		c.JSON(http.StatusCreated, gin.H{
			"token":      token,
			"expires_in": int(ttl.Seconds()),
		})
	}
}

// @Summary      Validate one-time token
// @Description  Redeem a one-time token for the identity it delegates. Each token validates at most once; concurrent attempts yield one success.
// @Tags         Tokens
// @Accept       json
// @Produce      json
// @Param        request  body  object  true  "token"
// @Success      200  {object}  map[string]interface{}  "user_id, username, app_id"
// @Failure      400  {object}  map[string]interface{}  "Missing token"
// @Failure      401  {object}  map[string]interface{}  "Invalid, expired, or already-used token"
// @Failure      404  {object}  map[string]interface{}  "Unknown or superseded token"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/tokens/validate [post]
// ValidateHandler redeems a one-time token. No session required.
// POST /api/v1/tokens/validate
func (h *TokenHandlers) ValidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			apperrors.Respond(c, apperrors.Validation("token is required"))
			return
		}

		claims, err := auth.ParseOneTimeToken(req.Token)
		if err != nil {
			if errors.Is(err, auth.ErrOneTimeTokenExpired) {
				telemetry.OneTimeTokensValidatedTotal.WithLabelValues("expired").Inc()
				apperrors.Respond(c, apperrors.ErrTokenExpired)
				return
			}
			telemetry.OneTimeTokensValidatedTotal.WithLabelValues("invalid").Inc()
			apperrors.Respond(c, apperrors.ErrInvalidToken)
			return
		}

		ctx := c.Request.Context()

		// One conditional UPDATE decides the winner under concurrency.
		record, err := h.ottRepo.Consume(ctx, claims.ID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if record == nil {
			h.respondConsumeFailure(c, claims.ID)
			return
		}

		// The row is authoritative; a signature/row mismatch means the token
		// was not minted for this pair.
		if record.UserID != claims.UserID || record.AppID != claims.AppID {
			telemetry.OneTimeTokensValidatedTotal.WithLabelValues("invalid").Inc()
			apperrors.Respond(c, apperrors.ErrInvalidToken)
			return
		}

		user, err := h.userRepo.GetUserByID(ctx, record.UserID)
		if err != nil {
			apperrors.Respond(c, apperrors.Internal(err))
			return
		}
		if user == nil {
			telemetry.OneTimeTokensValidatedTotal.WithLabelValues("invalid").Inc()
			apperrors.Respond(c, apperrors.ErrUserNotFound)
			return
		}

		telemetry.OneTimeTokensValidatedTotal.WithLabelValues("success").Inc()

		c.JSON(http.StatusOK, gin.H{
			"user_id":  record.UserID,
			"username": user.Username,
			"app_id":   record.AppID,
		})
	}
}

// respondConsumeFailure distinguishes why a consume lost: the row may be
// gone (superseded or never issued), already consumed, or expired.
func (h *TokenHandlers) respondConsumeFailure(c *gin.Context, jti string) {
	record, err := h.ottRepo.GetByJTI(c.Request.Context(), jti)
	if err != nil {
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}

	switch {
	case record == nil:
		telemetry.OneTimeTokensValidatedTotal.WithLabelValues("invalid").Inc()
		apperrors.Respond(c, apperrors.ErrTokenNotFound)
	case record.Consumed():
		telemetry.OneTimeTokensValidatedTotal.WithLabelValues("consumed").Inc()
		apperrors.Respond(c, apperrors.ErrTokenConsumed)
	default:
		telemetry.OneTimeTokensValidatedTotal.WithLabelValues("expired").Inc()
		apperrors.Respond(c, apperrors.ErrTokenExpired)
	}
}
