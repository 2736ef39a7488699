// Package errors provides structured error types for the nestfold application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the build's error taxonomy:
//   - INVALID_*: Input validation failures (vault paths, references, formats)
//   - *_FAILED / SELF_PARENT / PARENT_CYCLE: per-node recoverable failures
//     during forest derivation; these are logged and the offending node is
//     skipped, they never abort a build
//   - GRAPH_UNAVAILABLE / READY_TIMEOUT: fatal-to-build conditions; the whole
//     build aborts before any node is touched
//
// # Usage
//
//	err := errors.New(errors.ErrCodeSelfParent, "note %q declares itself as parent", id)
//	if errors.Is(err, errors.ErrCodeSelfParent) {
//	    // Skip this node, keep processing siblings
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeAttachFailed, origErr, "attach %s to %s", id, parent)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidVault     Code = "INVALID_VAULT"
	ErrCodeInvalidReference Code = "INVALID_REFERENCE"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidNodeID    Code = "INVALID_NODE_ID"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeNodeNotFound Code = "NODE_NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Per-node recoverable errors during forest derivation
	ErrCodeSelfParent        Code = "SELF_PARENT"
	ErrCodeParentCycle       Code = "PARENT_CYCLE"
	ErrCodePlaceholderFailed Code = "PLACEHOLDER_FAILED"
	ErrCodeAttachFailed      Code = "ATTACH_FAILED"

	// Fatal-to-build errors
	ErrCodeGraphUnavailable Code = "GRAPH_UNAVAILABLE"
	ErrCodeReadyTimeout     Code = "READY_TIMEOUT"
	ErrCodeBuildInFlight    Code = "BUILD_IN_FLIGHT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err carries a fatal-to-build code.
// Fatal errors abort the whole build before any node is mutated; everything
// else is either recoverable per node or an expected silent skip.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeGraphUnavailable, ErrCodeReadyTimeout:
		return true
	}
	return false
}
