package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to API callers. Handlers and services return these so
// the HTTP layer can map failures to a status/code pair without leaking
// internals.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeUnknownCapability = "UNKNOWN_CAPABILITY"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeNotApproved       = "NOT_APPROVED"
	CodeNotEnabled        = "NOT_ENABLED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error carries a machine-readable code alongside the message. A
// ContractViolation is a defect in a capability handler, not a caller error.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code string, status int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(CodeValidation, http.StatusBadRequest, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(CodeNotFound, http.StatusNotFound, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(CodeForbidden, http.StatusForbidden, format, args...)
}

func UnknownCapability(name string) *Error {
	return New(CodeUnknownCapability, http.StatusNotFound, "unknown capability: %s", name)
}

func ContractViolation(format string, args ...interface{}) *Error {
	return New(CodeContractViolation, http.StatusInternalServerError, format, args...)
}

func NotApproved(format string, args ...interface{}) *Error {
	return New(CodeNotApproved, http.StatusConflict, format, args...)
}

func NotEnabled(format string, args ...interface{}) *Error {
	return New(CodeNotEnabled, http.StatusConflict, format, args...)
}

// CodeOf extracts the code and HTTP status from err, defaulting to an
// internal error for anything that is not an *Error.
func CodeOf(err error) (string, int) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code, ae.Status
	}
	return CodeInternal, http.StatusInternalServerError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
