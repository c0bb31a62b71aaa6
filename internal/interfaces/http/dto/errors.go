package dto

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/retailops/internal/domain/shared"
)

// Error codes returned in ErrorInfo.Code.
// Format: ERR_<DESCRIPTION>
const (
	ErrCodeInternal          = "ERR_INTERNAL"
	ErrCodeBadRequest        = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput      = "ERR_INVALID_INPUT"
	ErrCodeNotFound          = "ERR_NOT_FOUND"
	ErrCodeConflict          = "ERR_CONFLICT"
	ErrCodeForbidden         = "ERR_FORBIDDEN"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	ErrCodePolicyViolation   = "ERR_POLICY_VIOLATION"
	ErrCodeIllegalTransition = "ERR_ILLEGAL_TRANSITION"
	ErrCodeRequestTooLarge   = "ERR_REQUEST_TOO_LARGE"
	ErrCodeTimeout           = "ERR_TIMEOUT"
	ErrCodeUnavailable       = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeNotFound:  http.StatusNotFound,
	ErrCodeConflict:  http.StatusConflict,
	ErrCodeForbidden: http.StatusForbidden,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodePolicyViolation:   http.StatusUnprocessableEntity,
	ErrCodeIllegalTransition: http.StatusUnprocessableEntity,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:         http.StatusGatewayTimeout,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes maps domain error codes to API error codes.
var domainCodes = map[string]string{
	shared.CodeNotFound:          ErrCodeNotFound,
	shared.CodeInvalidInput:      ErrCodeInvalidInput,
	shared.CodeConflict:          ErrCodeConflict,
	shared.CodeForbidden:         ErrCodeForbidden,
	shared.CodeInsufficientStock: ErrCodeInsufficientStock,
	shared.CodePolicyViolation:   ErrCodePolicyViolation,
	shared.CodeIllegalTransition: ErrCodeIllegalTransition,
}

// NormalizeErrorCode converts a domain error code to its API form.
// Codes already in API form, and unknown codes, are returned as is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodes[code]; ok {
		return apiCode
	}
	return code
}

// sentinels lists the domain sentinels in match order. The typed errors
// (insufficient stock, policy violation, illegal transition) match their
// sentinel through errors.Is.
var sentinels = []*shared.DomainError{
	shared.ErrInsufficientStock,
	shared.ErrPolicyViolation,
	shared.ErrIllegalTransition,
	shared.ErrConflict,
	shared.ErrForbidden,
	shared.ErrNotFound,
	shared.ErrInvalidInput,
}

// ClassifyError returns the API error code and the client-facing message
// for err. Unclassified errors become ERR_INTERNAL with a generic message.
func ClassifyError(err error) (code, message string) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return NormalizeErrorCode(domainErr.Code), domainErr.Message
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return NormalizeErrorCode(s.Code), err.Error()
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout, "The request timed out"
	case errors.Is(err, context.Canceled):
		return ErrCodeTimeout, "The request was cancelled"
	}
	return ErrCodeInternal, "An unexpected error occurred"
}
