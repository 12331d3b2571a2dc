package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
)

// HTTP header names
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTenantID  = "X-Tenant-ID"
	HeaderAccountID = "X-Business-Account-ID"
	HeaderActorID   = "X-Actor-ID"
)

// Context keys
const (
	ContextKeyRequestID      = "requestId"
	ContextKeyRequestContext = "requestContext"
)

// RequestID generates or propagates the request id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// Tenant builds the request context from the tenant and account headers.
// requireAccount rejects requests without X-Business-Account-ID.
func Tenant(requireAccount bool, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := parseID(c.GetHeader(HeaderTenantID))
		if err != nil || tenantID == 0 {
			RespondWithError(c, logger, apperrors.Validation(HeaderTenantID+" header must be a positive integer"))
			c.Abort()
			return
		}

		raw := c.GetHeader(HeaderAccountID)
		accountID, err := parseID(raw)
		if err != nil || (requireAccount && accountID == 0) {
			RespondWithError(c, logger, apperrors.Validation(HeaderAccountID+" header must be a positive integer"))
			c.Abort()
			return
		}

		rc := models.RequestContext{
			TenantID:  tenantID,
			AccountID: accountID,
			RequestID: c.GetString(ContextKeyRequestID),
			ActorID:   c.GetHeader(HeaderActorID),
		}
		c.Set(ContextKeyRequestContext, rc)
		c.Request = c.Request.WithContext(logging.ContextWithFields(c.Request.Context(), map[string]any{
			"tenantId":  rc.TenantID,
			"accountId": rc.AccountID,
		}))
		c.Next()
	}
}

// parseID returns 0 for an empty header
func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, apperrors.Validation("invalid id")
	}
	return id, nil
}

// RequestContext returns the context set by Tenant
func RequestContext(c *gin.Context) models.RequestContext {
	if v, ok := c.Get(ContextKeyRequestContext); ok {
		if rc, ok := v.(models.RequestContext); ok {
			return rc
		}
	}
	return models.RequestContext{RequestID: c.GetString(ContextKeyRequestID)}
}

// Logging logs one line per request
func Logging(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start).String(),
			"requestId", c.GetString(ContextKeyRequestID),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request completed", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request completed", attrs...)
		default:
			logger.Info("Request completed", attrs...)
		}
	}
}

// Recovery turns a panic into a 500 response
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("❌ Panic recovered",
					"error", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"requestId", c.GetString(ContextKeyRequestID),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, internalError()))
			}
		}()
		c.Next()
	}
}
