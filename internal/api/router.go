// Package api wires together all HTTP routes for the Nexin backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/register, /login, /refresh, /logout are unauthenticated
//     (the token in the body is the credential) but carry the strict auth
//     rate limit.
//   - /api/v1/tokens/validate is the only domain operation reachable without
//     a session: game servers redeem one-time tokens there. It gets its own
//     rate limit budget.
//   - /api/v1/apps/:id/authenticate is likewise unauthenticated; the app
//     secret in the body is the credential.
//   - Everything else under /api/v1 requires a session (Bearer access token).
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/nexin-gg/nexin-backend/internal/api/accounts"
	"github.com/nexin-gg/nexin-backend/internal/api/apps"
	"github.com/nexin-gg/nexin-backend/internal/api/tokens"
	"github.com/nexin-gg/nexin-backend/internal/audit"
	"github.com/nexin-gg/nexin-backend/internal/config"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
	"github.com/nexin-gg/nexin-backend/internal/jobs"
	"github.com/nexin-gg/nexin-backend/internal/middleware"
)

// Version is the service version reported by /version.
const Version = "0.1.0"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	tokenSweeper *jobs.TokenSweeper
	rateLimiters []*middleware.RateLimiter
	redisClient  *redis.Client
	auditShipper *audit.MultiShipper
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.tokenSweeper != nil {
		bg.tokenSweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Error("closing redis client", "error", err)
		}
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("closing audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshRepo := repositories.NewRefreshTokenRepository(db)
	ottRepo := repositories.NewOneTimeTokenRepository(db)

	// Wrap *sql.DB with sqlx for the server repository inside the handlers
	sqlxDB := sqlx.NewDb(db, "postgres")
	auditRepo := repositories.NewAuditRepository(db)

	// Optional external audit destinations (file, webhook) on top of the
	// database audit log
	auditShipper := buildAuditShipper(&cfg.Audit)

	// Initialize and start the expired-token sweeper
	tokenSweeper := jobs.NewTokenSweeper(refreshRepo, ottRepo, cfg.Jobs.TokenSweepIntervalMinutes)
	go tokenSweeper.Start(context.Background())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	authHandlers := accounts.NewAuthHandlers(cfg, db)
	appHandlers := apps.NewAppHandlers(cfg, db)
	serverHandlers := apps.NewServerHandlers(cfg, db, sqlxDB)
	tokenHandlers := tokens.NewTokenHandlers(cfg, db)

	// Initialize rate limiters
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	validateRateLimiter := middleware.NewRateLimiter(middleware.ValidateRateLimitConfig())

	// When Redis is configured the per-process limiters are fronted by a
	// shared Redis budget, so the effective limit holds across replicas.
	var redisClient *redis.Client
	var authRedisLimit, validateRedisLimit gin.HandlerFunc
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		authRedisLimit = middleware.RedisRateLimitMiddleware(
			middleware.NewRedisRateLimiter(redisClient, middleware.AuthRateLimitConfig()))
		validateRedisLimit = middleware.RedisRateLimitMiddleware(
			middleware.NewRedisRateLimiter(redisClient, middleware.ValidateRateLimitConfig()))
		log.Printf("Redis rate limiting enabled (addr: %s)", cfg.Redis.Addr)
	}

	apiV1 := router.Group("/api/v1")
	{
		// Session endpoints (no auth required; strict rate limit)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		if authRedisLimit != nil {
			authGroup.Use(authRedisLimit)
		}
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.POST("/refresh", authHandlers.RefreshHandler())
			authGroup.POST("/logout", authHandlers.LogoutHandler())
		}

		// Token validation (no auth required; own rate limit budget)
		validateGroup := apiV1.Group("/tokens")
		validateGroup.Use(middleware.RateLimitMiddleware(validateRateLimiter))
		if validateRedisLimit != nil {
			validateGroup.Use(validateRedisLimit)
		}
		{
			validateGroup.POST("/validate", tokenHandlers.ValidateHandler())
		}

		// App authentication (no auth required; the secret is the credential)
		apiV1.POST("/apps/:id/authenticate",
			middleware.RateLimitMiddleware(authRateLimiter),
			appHandlers.AuthenticateAppHandler())

		// Authenticated endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AuthMiddleware(userRepo))
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		var shipper audit.Shipper
		if auditShipper != nil {
			shipper = auditShipper
		}
		authenticatedGroup.Use(middleware.AuditMiddlewareWithShipper(auditRepo, &cfg.Audit, shipper))
		{
			authenticatedGroup.GET("/auth/me", authHandlers.MeHandler())

			// App management
			appsGroup := authenticatedGroup.Group("/apps")
			{
				appsGroup.GET("", appHandlers.ListAppsHandler())
				appsGroup.POST("", appHandlers.CreateAppHandler())
				appsGroup.GET("/:id", appHandlers.GetAppHandler())
				appsGroup.PUT("/:id", appHandlers.UpdateAppHandler())
				appsGroup.DELETE("/:id", appHandlers.DeleteAppHandler())
				appsGroup.POST("/:id/secret", appHandlers.RotateSecretHandler())

				// Game server directory
				appsGroup.GET("/:id/servers", serverHandlers.ListServersHandler())
				appsGroup.POST("/:id/servers", serverHandlers.CreateServerHandler())
				appsGroup.GET("/:id/servers/:serverID", serverHandlers.GetServerHandler())
				appsGroup.PUT("/:id/servers/:serverID", serverHandlers.UpdateServerHandler())
				appsGroup.DELETE("/:id/servers/:serverID", serverHandlers.DeleteServerHandler())
			}

			// One-time token issuance
			authenticatedGroup.POST("/tokens", tokenHandlers.IssueHandler())
		}
	}

	bg := &BackgroundServices{
		tokenSweeper: tokenSweeper,
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, validateRateLimiter},
		redisClient:  redisClient,
		auditShipper: auditShipper,
	}

	return router, bg
}

// buildAuditShipper assembles the configured external audit destinations.
// Returns nil when no destination is configured.
func buildAuditShipper(auditCfg *config.AuditConfig) *audit.MultiShipper {
	if !auditCfg.Enabled {
		return nil
	}

	var shipperCfgs []audit.ShipperConfig
	if auditCfg.ShipFilePath != "" {
		shipperCfgs = append(shipperCfgs, audit.ShipperConfig{
			Enabled: true,
			Type:    "file",
			File: &audit.FileConfig{
				Path:      auditCfg.ShipFilePath,
				MaxSizeMB: auditCfg.ShipFileMaxSizeMB,
			},
		})
	}
	if auditCfg.ShipWebhookURL != "" {
		shipperCfgs = append(shipperCfgs, audit.ShipperConfig{
			Enabled: true,
			Type:    "webhook",
			Webhook: &audit.WebhookConfig{URL: auditCfg.ShipWebhookURL},
		})
	}
	if len(shipperCfgs) == 0 {
		return nil
	}

	ms, err := audit.NewMultiShipper(shipperCfgs)
	if err != nil {
		log.Printf("Warning: audit shipper setup failed, external shipping disabled: %v", err)
		return nil
	}
	return ms
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: ok, service, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "nexin-backend",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current service and API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
			"service":     "nexin-backend",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
