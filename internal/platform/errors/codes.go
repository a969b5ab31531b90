// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidInput Code = "INVALID_INPUT"

	// Commitment errors
	CodeDuplicateEntity  Code = "DUPLICATE_ENTITY"
	CodeAlreadyProcessed Code = "ALREADY_PROCESSED"
	CodeRequestNotFound  Code = "REQUEST_NOT_FOUND"

	// Randomness source errors
	CodeUnavailable  Code = "UNAVAILABLE"
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Verification errors
	CodeVerificationMismatch Code = "VERIFICATION_MISMATCH"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidInput:
		return http.StatusBadRequest

	// Conflict - the commitment already exists
	case CodeDuplicateEntity, CodeAlreadyProcessed:
		return http.StatusConflict

	// NotFound - resource doesn't exist
	case CodeNotFound, CodeRequestNotFound:
		return http.StatusNotFound

	case CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeUnavailable:
		return http.StatusServiceUnavailable

	case CodeVerificationMismatch:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the failed operation unchanged.
func (c Code) Retryable() bool {
	return c == CodeUnavailable
}
