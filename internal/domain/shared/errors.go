package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error codes shared by every bounded context.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConflict          = "CONFLICT"
	CodeForbidden         = "FORBIDDEN"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodePolicyViolation   = "POLICY_VIOLATION"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so callers can use
// errors.Is(err, shared.ErrNotFound) against errors built with NewDomainError.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput      = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConflict          = NewDomainError(CodeConflict, "Resource is locked or was modified by another process")
	ErrForbidden         = NewDomainError(CodeForbidden, "Actor lacks the capability for this action")
	ErrInsufficientStock = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrPolicyViolation   = NewDomainError(CodePolicyViolation, "Operation blocked by policy")
	ErrIllegalTransition = NewDomainError(CodeIllegalTransition, "Transition not allowed in current state")
)

// NotFound builds a NOT_FOUND error for a named resource.
func NotFound(resource string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id))
}

// InvalidInput builds an INVALID_INPUT error.
func InvalidInput(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidInput, fmt.Sprintf(format, args...))
}

// InsufficientStockError reports a stock shortfall for one balance key.
type InsufficientStockError struct {
	Key       string
	Bucket    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient %s stock for %s: available %s, requested %s",
		e.Bucket, e.Key, e.Available.String(), e.Requested.String())
}

// Is reports whether target is ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == CodeInsufficientStock
}

// PolicyViolationError is returned when a policy verdict is block.
type PolicyViolationError struct {
	Policy  string
	Message string
	Data    map[string]string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s policy violation: %s", e.Policy, e.Message)
}

// Is reports whether target is ErrPolicyViolation.
func (e *PolicyViolationError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == CodePolicyViolation
}

// IllegalTransitionError is returned when a workflow transition is requested
// from a state the transition table does not allow.
type IllegalTransitionError struct {
	Entity     string
	From       string
	Transition string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in %s state", e.Transition, e.Entity, e.From)
}

// Is reports whether target is ErrIllegalTransition.
func (e *IllegalTransitionError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == CodeIllegalTransition
}
