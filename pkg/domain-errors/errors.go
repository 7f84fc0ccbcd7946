// Package domainerrors defines coded errors that services return to transports.
//
// Stores return infrastructure facts (pkg/platform/sentinel); services translate
// them into a Code here. Transports map codes to status codes via ToHTTPStatus and
// never inspect messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, client-visible error classification.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "service_unavailable"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal_error"

	// Check-in taxonomy.
	CodeDuplicateCheckin     Code = "duplicate_checkin"
	CodeCodeSpaceExhausted   Code = "code_space_exhausted"
	CodeOccurrenceConflict   Code = "occurrence_conflict"
	CodeOccurrenceClosed     Code = "occurrence_closed"
	CodeTemplateNotFound     Code = "template_not_found"
	CodeSubmissionInProgress Code = "submission_in_progress"
)

// Error carries a Code, a safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// MessageOf returns the client-safe message for coded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the status code returned by HTTP transports.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeTemplateNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateCheckin, CodeOccurrenceClosed, CodeSubmissionInProgress, CodeInvariantViolation:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable, CodeCodeSpaceExhausted, CodeOccurrenceConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
