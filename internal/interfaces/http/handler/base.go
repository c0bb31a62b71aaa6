// Package handler implements the HTTP handlers of the ops surface.
package handler

import (
	"net/http"

	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/erp/retailops/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError converts err to an error response. Internal errors are
// logged; their details never reach the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, message := dto.ClassifyError(err)
	if code == dto.ErrCodeInternal {
		logger.FromContext(c.Request.Context()).Error("Request failed", zap.Error(err))
	}
	h.Error(c, code, message)
}

// uuidParam parses the path parameter name, answering 400 when it is not a
// uuid.
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, name+" must be a valid uuid")
		return uuid.Nil, false
	}
	return id, true
}
