package middleware

import (
	"net/http"

	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit rejects requests whose body exceeds maxBytes.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge,
					"Request body exceeds maximum allowed size", GetRequestID(c)))
			return
		}

		// Streaming bodies without a Content-Length are cut off at the limit.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
