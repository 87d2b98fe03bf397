package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeValidation              = "VALIDATION_ERROR"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeUnauthenticated         = "UNAUTHENTICATED"
	ErrCodeTokenExpired            = "TOKEN_EXPIRED"
	ErrCodeInvalidSignature        = "INVALID_SIGNATURE"
	ErrCodeInvalidWebhookSignature = "INVALID_WEBHOOK_SIGNATURE"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInternal                = "INTERNAL_ERROR"
	ErrCodeConflict                = "CONFLICT"
	ErrCodeBadRequest              = "BAD_REQUEST"
	ErrCodeNoSubscription          = "NO_SUBSCRIPTION"
	ErrCodeInsufficientBalance     = "INSUFFICIENT_BALANCE"
	ErrCodeSessionNotFound         = "SESSION_NOT_FOUND"
)

// Error constructors

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError() error {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
	}
}

// NewUnauthenticatedError is returned when the bearer credential is absent or malformed
func NewUnauthenticatedError() error {
	return &DomainError{
		Code:    ErrCodeUnauthenticated,
		Message: "Missing or malformed bearer token",
	}
}

// NewTokenExpiredError is returned for a correctly signed token whose expiry has passed
func NewTokenExpiredError(err error) error {
	return &DomainError{
		Code:    ErrCodeTokenExpired,
		Message: "Token expired",
		Err:     err,
	}
}

// NewInvalidSignatureError covers every other token verification failure
func NewInvalidSignatureError(err error) error {
	return &DomainError{
		Code:    ErrCodeInvalidSignature,
		Message: "Invalid token",
		Err:     err,
	}
}

// NewInvalidWebhookSignatureError is returned when a provider webhook fails verification
func NewInvalidWebhookSignatureError(err error) error {
	return &DomainError{
		Code:    ErrCodeInvalidWebhookSignature,
		Message: "Invalid webhook signature",
		Err:     err,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(msg string) error {
	return &DomainError{
		Code:    ErrCodeForbidden,
		Message: msg,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(msg string) error {
	return &DomainError{
		Code:    ErrCodeBadRequest,
		Message: msg,
	}
}

// NewNoSubscriptionError is returned when the caller has no subscription row
func NewNoSubscriptionError() error {
	return &DomainError{
		Code:    ErrCodeNoSubscription,
		Message: "No subscription found",
	}
}

// NewInsufficientBalanceError is returned when fewer than one Luna minute is left
func NewInsufficientBalanceError() error {
	return &DomainError{
		Code:    ErrCodeInsufficientBalance,
		Message: "Luna minutes exhausted",
	}
}

// NewSessionNotFoundError covers missing, foreign and closed sessions
func NewSessionNotFoundError() error {
	return &DomainError{
		Code:    ErrCodeSessionNotFound,
		Message: "Session not found or already closed",
	}
}

// Helper functions to check error types

func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return hasCode(err, ErrCodeInternal)
}

// IsNoSubscription checks if the error is a missing subscription error
func IsNoSubscription(err error) bool {
	return hasCode(err, ErrCodeNoSubscription)
}

// IsInsufficientBalance checks if the error is an exhausted balance error
func IsInsufficientBalance(err error) bool {
	return hasCode(err, ErrCodeInsufficientBalance)
}

// IsSessionNotFound checks if the error is a session lookup failure
func IsSessionNotFound(err error) bool {
	return hasCode(err, ErrCodeSessionNotFound)
}

// IsInvalidWebhookSignature checks if the error is a webhook verification failure
func IsInvalidWebhookSignature(err error) bool {
	return hasCode(err, ErrCodeInvalidWebhookSignature)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
