// Package middleware provides the HTTP middleware of the ops surface.
package middleware

import (
	"context"
	"time"

	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
	// MaxRequestIDLength caps client supplied request ids.
	MaxRequestIDLength = 128
	// TenantParam is the route parameter naming the tenant.
	TenantParam = "tenant_id"
)

// RequestID adds a request id to each request, reusing the client's when
// one is supplied.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if len(requestID) > MaxRequestIDLength {
			requestID = requestID[:MaxRequestIDLength]
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Secure adds the basic security headers to every response.
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// Timeout bounds the request context. Handlers pass the context on to the
// ledger, so a slow verification is cancelled rather than left running.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantContext scopes the request logger to the tenant named in the path.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := uuid.Parse(c.Param(TenantParam)); err == nil {
			c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), id))
		}
		c.Next()
	}
}

// tenantID returns the tenant route parameter when it is a valid uuid.
func tenantID(c *gin.Context) string {
	raw := c.Param(TenantParam)
	if raw == "" {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ""
	}
	return raw
}
