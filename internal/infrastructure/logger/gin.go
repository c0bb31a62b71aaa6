package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ginLoggerKey = "logger"

// GinMiddleware logs one entry per request and puts a request-scoped logger
// in both the gin context and the request context. It reads the request id
// set under "request_id" by the request id middleware, so that middleware
// must run first. Probe paths (/health/...) log at debug level.
func GinMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetString("request_id")

		ctx := WithContext(c.Request.Context(), log.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		))
		if requestID != "" {
			ctx = WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, FromContext(ctx))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		reqLog := FromContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			reqLog.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			reqLog.Warn("HTTP request", fields...)
		case strings.HasPrefix(c.FullPath(), "/health/"):
			reqLog.Debug("HTTP request", fields...)
		default:
			reqLog.Info("HTTP request", fields...)
		}
	}
}

// Recovery logs panics with a stack trace and aborts the request. respond
// writes the error response; nil means a bare 500.
func Recovery(log *zap.Logger, respond func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error("Panic recovered",
				zap.String("request_id", c.GetString("request_id")),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			if respond == nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			respond(c)
			c.Abort()
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger set by GinMiddleware.
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if log, ok := l.(*zap.Logger); ok {
			return log
		}
	}
	return zap.NewNop()
}
