// audit.go provides Gin middleware that records authenticated write operations
// to the audit log.
package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexin-gg/nexin-backend/internal/audit"
	"github.com/nexin-gg/nexin-backend/internal/config"
	"github.com/nexin-gg/nexin-backend/internal/db/models"
	"github.com/nexin-gg/nexin-backend/internal/db/repositories"
)

// AuditMiddleware logs authenticated actions to the database with default settings
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithConfig logs authenticated actions according to the audit config
func AuditMiddlewareWithConfig(auditRepo *repositories.AuditRepository, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, auditCfg, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions to the database and,
// when a shipper is provided, forwards each entry to the configured external
// destinations as well. Shipping failures never affect the request.
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, auditCfg *config.AuditConfig, shipper audit.Shipper) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		// Skip OPTIONS always
		if c.Request.Method == "OPTIONS" {
			return
		}

		// Determine what to log based on config
		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		// Default behavior: only log successful write operations
		if auditCfg == nil {
			if isReadOp || isFailed {
				return
			}
		} else {
			if isReadOp && !logReadOps {
				return
			}
			if isFailed && !logFailedReqs {
				return
			}
		}

		// Extract context
		userID, _ := c.Get("user_id")

		// Create audit log entry
		action := fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		ipAddress := c.ClientIP()

		auditLog := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		// Set user ID if present
		if userID != nil {
			if uid, ok := userID.(string); ok {
				auditLog.UserID = &uid
			}
		}

		// Set resource type based on URL path
		path := c.Request.URL.Path
		var resourceType string
		switch {
		case strings.Contains(path, "/servers"):
			resourceType = "server"
		case strings.Contains(path, "/apps"):
			resourceType = "app"
			if strings.Contains(path, "/secret") {
				auditLog.Action = "app.rotate_secret"
			} else if strings.Contains(path, "/tokens") {
				resourceType = "token"
				auditLog.Action = "token.issue"
			}
		case strings.Contains(path, "/tokens/validate"):
			resourceType = "token"
			auditLog.Action = "token.validate"
		case strings.Contains(path, "/auth"):
			resourceType = "user"
		}
		if resourceType != "" {
			auditLog.ResourceType = &resourceType
		}

		metadata := map[string]interface{}{
			"status_code": c.Writer.Status(),
		}
		auditLog.Metadata = metadata

		// Async log creation (non-blocking)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.CreateAuditLog(ctx, auditLog); err != nil {
					fmt.Printf("Failed to create audit log in database: %v\n", err)
				}
			}

			if shipper != nil {
				entry := &audit.LogEntry{
					Timestamp:  auditLog.CreatedAt,
					Action:     auditLog.Action,
					IPAddress:  ipAddress,
					StatusCode: c.Writer.Status(),
					Metadata:   metadata,
				}
				if auditLog.UserID != nil {
					entry.UserID = *auditLog.UserID
				}
				if auditLog.ResourceType != nil {
					entry.ResourceType = *auditLog.ResourceType
				}
				if err := shipper.Ship(ctx, entry); err != nil {
					fmt.Printf("Failed to ship audit log: %v\n", err)
				}
			}
		}()
	}
}
