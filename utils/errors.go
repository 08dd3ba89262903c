package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies every failure the core can produce. Transport layers map
// kinds to status codes; services only ever reason about kinds.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindForbidden    ErrorKind = "FORBIDDEN"
	KindConflict     ErrorKind = "CONFLICT"
	KindBusinessRule ErrorKind = "BUSINESS_RULE_VIOLATION"
	KindCompliance   ErrorKind = "COMPLIANCE_VIOLATION"
	KindInternal     ErrorKind = "INTERNAL"
)

type APIError struct {
	Kind    ErrorKind `json:"kind"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(kind ErrorKind, code int, message string) *APIError {
	return &APIError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

func NotFoundError(message string) *APIError {
	return NewAPIError(KindNotFound, http.StatusNotFound, message)
}

func ForbiddenError(message string) *APIError {
	return NewAPIError(KindForbidden, http.StatusForbidden, message)
}

func ConflictError(message string) *APIError {
	return NewAPIError(KindConflict, http.StatusConflict, message)
}

func BusinessRuleError(message string) *APIError {
	return NewAPIError(KindBusinessRule, http.StatusUnprocessableEntity, message)
}

func ComplianceError(message string) *APIError {
	return NewAPIError(KindCompliance, http.StatusUnavailableForLegalReasons, message)
}

func (e *APIError) WithDetails(details string) *APIError {
	return &APIError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

var (
	ErrConsentNotFound     = NotFoundError("Consent not found")
	ErrResourceNotFound    = NotFoundError("Resource not found")
	ErrParticipantMismatch = ForbiddenError("Consent participant mismatch")
	ErrConsentExpired      = ForbiddenError("Consent expired")
	ErrConsentRevoked      = ForbiddenError("Consent revoked")
	ErrScopeMissing        = ForbiddenError("Required scope missing")
	ErrResourceNotLinked   = ForbiddenError("Resource not linked to consent")
	ErrIdempotencyConflict = ConflictError("Idempotency key reuse with a different payload")
	ErrLimitExceeded       = BusinessRuleError("Consented limit exceeded")
	ErrQuoteManipulation   = BusinessRuleError("Quote parameter manipulation")
	ErrQuoteExpired        = BusinessRuleError("Quote expired")
	ErrQuoteNotAcceptable  = BusinessRuleError("Quote is not in an acceptable state")
	ErrEmptyPayload        = BusinessRuleError("Empty Payload")
	ErrPayloadTooLarge     = BusinessRuleError("Payload Too Large")
	ErrIntegrityFailure    = BusinessRuleError("Integrity Failure")
	ErrSchemaValidation    = BusinessRuleError("Schema Validation Failed")
	ErrCurrencyMismatch    = BusinessRuleError("Payment currency does not match consent")
	ErrScreeningHit        = ComplianceError("Payee blocked by compliance screening")
)

// KindOf unwraps err looking for an *APIError; anything else is INTERNAL.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func HTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
