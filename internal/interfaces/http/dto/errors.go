package dto

import "net/http"

// Error codes shared between the interface layer and clients. Domain
// errors carry their own codes; the set below covers errors raised by
// the HTTP layer itself.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
	ErrCodeValidation   = "VALIDATION_ERROR"
)

// errorCodeHTTPStatus maps error codes raised by the application and
// domain layers to HTTP status codes.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeValidation:   http.StatusBadRequest,

	// Identity
	"EMAIL_TAKEN":         http.StatusConflict,
	"INVALID_CREDENTIALS": http.StatusUnauthorized,
	"ACCOUNT_DISABLED":    http.StatusForbidden,
	"ACCOUNT_NOT_FOUND":   http.StatusNotFound,
	"INVALID_PASSWORD":    http.StatusUnprocessableEntity,
	"PASSWORD_MISMATCH":   http.StatusUnprocessableEntity,
	"TOKEN_EXPIRED":       http.StatusUnauthorized,
	"TOKEN_INVALID":       http.StatusUnauthorized,
	"TOKEN_MAX_REFRESH":   http.StatusUnauthorized,
	"TOKEN_ERROR":         http.StatusUnauthorized,

	// API tokens
	"TOKEN_NOT_FOUND": http.StatusNotFound,
	"TOKEN_PROTECTED": http.StatusConflict,
	"TOKEN_LIMIT":     http.StatusUnprocessableEntity,
	"VALUE_COLLISION": http.StatusInternalServerError,
	"INVALID_INPUT":   http.StatusBadRequest,
	"INVALID_STATE":   http.StatusUnprocessableEntity,
	"ALREADY_EXISTS":  http.StatusConflict,

	// Plans and billing
	"PLAN_NOT_FOUND":     http.StatusNotFound,
	"NO_BILLING_ACCOUNT": http.StatusUnprocessableEntity,
	"BILLING_DISABLED":   http.StatusServiceUnavailable,
	"EMAIL_MISMATCH":     http.StatusUnprocessableEntity,
	"INVALID_SIGNATURE":  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500 Internal Server Error.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
