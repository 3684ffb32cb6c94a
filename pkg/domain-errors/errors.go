// Package domainerrors provides coded errors for registry business logic.
// Services return these; the protocol edges translate codes into EPP result
// codes or HTTP statuses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for protocol mapping and retry decisions.
type Code string

const (
	// CodeInvalidInput marks malformed or policy-violating input. Never
	// retried automatically.
	CodeInvalidInput Code = "invalid_input"
	// CodeMissingParameter marks a required parameter that was absent.
	CodeMissingParameter Code = "missing_parameter"
	// CodeNotFound marks a target object that does not exist.
	CodeNotFound Code = "not_found"
	// CodeAlreadyExists marks a uniqueness conflict (domain name, contact id).
	CodeAlreadyExists Code = "already_exists"
	// CodeUnauthorized marks credential or session failures and commands by
	// a party that is not authorized to act on the object.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvalidAuthInfo marks a transfer authorization code mismatch.
	CodeInvalidAuthInfo Code = "invalid_auth_info"
	// CodeProhibited marks operations blocked by the object's status flags.
	CodeProhibited Code = "status_prohibits"
	// CodeAssociation marks deletes blocked by live references to the object.
	CodeAssociation Code = "association_prohibits"
	// CodeConcurrent marks an optimistic-concurrency loss. Safe to retry
	// after re-reading the object.
	CodeConcurrent Code = "concurrent_modification"
	// CodeRateLimited marks a source blocked by the rate limiter.
	CodeRateLimited Code = "rate_limited"
	// CodeSessionLimit marks a registrar at its concurrent-session cap.
	CodeSessionLimit Code = "session_limit"
	// CodeCommandUse marks a command that is well-formed but illegal in the
	// session's current state (e.g. login on an authenticated session).
	CodeCommandUse Code = "command_use"
	// CodePolicy marks a well-formed value rejected by registry policy.
	CodePolicy Code = "parameter_policy"
	// CodeUnimplemented marks a command or object type the server does not
	// support.
	CodeUnimplemented Code = "unimplemented"
	// CodeInternal marks infrastructure failures. The command fails, the
	// session stays open, the caller may retry later.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-facing message, and an optional cause.
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

// New creates a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from an error chain. Unclassified errors report
// CodeInternal so infrastructure failures never masquerade as client faults.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-facing message from an error chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "command failed"
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
