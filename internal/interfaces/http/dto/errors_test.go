package dto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeInsufficientStock, http.StatusUnprocessableEntity},
		{ErrCodePolicyViolation, http.StatusUnprocessableEntity},
		{ErrCodeIllegalTransition, http.StatusUnprocessableEntity},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{"ERR_SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode(shared.CodeNotFound))
	assert.Equal(t, ErrCodeIllegalTransition, NormalizeErrorCode(shared.CodeIllegalTransition))
	assert.Equal(t, ErrCodeBadRequest, NormalizeErrorCode(ErrCodeBadRequest))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{
			name:    "domain error",
			err:     shared.NotFound("transfer", "T-1"),
			code:    ErrCodeNotFound,
			message: "transfer T-1 not found",
		},
		{
			name:    "wrapped sentinel",
			err:     fmt.Errorf("append: %w", shared.ErrConflict),
			code:    ErrCodeConflict,
			message: shared.ErrConflict.Message,
		},
		{
			name: "insufficient stock",
			err: &shared.InsufficientStockError{
				Key: "k", Bucket: "available",
				Available: decimal.NewFromInt(2), Requested: decimal.NewFromInt(5),
			},
			code:    ErrCodeInsufficientStock,
			message: "insufficient available stock for k: available 2, requested 5",
		},
		{
			name:    "policy violation",
			err:     &shared.PolicyViolationError{Policy: "margin", Message: "below minimum"},
			code:    ErrCodePolicyViolation,
			message: "margin policy violation: below minimum",
		},
		{
			name:    "illegal transition",
			err:     &shared.IllegalTransitionError{Entity: "transfer", From: "received", Transition: "send"},
			code:    ErrCodeIllegalTransition,
			message: "cannot send transfer in received state",
		},
		{
			name:    "deadline",
			err:     fmt.Errorf("verify: %w", context.DeadlineExceeded),
			code:    ErrCodeTimeout,
			message: "The request timed out",
		},
		{
			name:    "unknown",
			err:     errors.New("connection reset"),
			code:    ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := ClassifyError(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeConflict, "busy", "req-1")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, &ErrorInfo{Code: ErrCodeConflict, Message: "busy", RequestID: "req-1"}, resp.Error)
	assert.Empty(t, NewErrorResponse(ErrCodeConflict, "busy").Error.RequestID)
}
