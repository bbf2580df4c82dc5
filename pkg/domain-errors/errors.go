// Package domainerrors provides the typed, code-carrying errors services
// return to transport layers. Stores return sentinel errors
// (pkg/platform/sentinel); services translate those into one of the codes
// below so handlers can map them to HTTP statuses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code labels the condition that rejected an operation.
type Code string

const (
	// CodeAlreadyExists rejects creation of a record whose key is in use.
	CodeAlreadyExists Code = "already_exists"
	// CodeNotFound rejects operations on records with no entry, or reads
	// where ownership resolution fails.
	CodeNotFound Code = "not_found"
	// CodeNotOwner rejects mutations by a caller other than the stored owner.
	CodeNotOwner Code = "not_owner"
	// CodeInvalidAccessor rejects the null identity where an accessor is required.
	CodeInvalidAccessor Code = "invalid_accessor"
	// CodeSelfGrant rejects granting access to oneself.
	CodeSelfGrant Code = "self_grant"
	// CodeNoActiveGrant rejects revocation when no active grant exists.
	CodeNoActiveGrant Code = "no_active_grant"
	// CodeUnauthorized rejects reads by callers holding no live grant.
	CodeUnauthorized Code = "unauthorized"

	CodeBadRequest Code = "bad_request"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal"
)

// Error carries a Code alongside a human-readable message and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for untyped
// errors so transport never leaks raw failure detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotOwner, CodeUnauthorized:
		return http.StatusForbidden
	case CodeInvalidAccessor, CodeSelfGrant, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNoActiveGrant:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
