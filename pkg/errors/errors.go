// Package errors provides structured error types for setupdb.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the resolver and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages naming the failing package
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes mirror the failure taxonomy of package resolution:
//   - NOT_FOUND: no version listing, or the registry has no such package
//   - REMOTE_FETCH_ERROR: transport or HTTP status failure (see [RemoteFetchError])
//   - MANIFEST_PARSE_ERROR: malformed .nuspec document
//   - ARTIFACT_NOT_FOUND: the package archive has no matching library entry
//   - RESOLUTION_ERROR: any of the above, annotated with the package identity
//     (see [ResolutionError])
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid package name: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeManifestParse, origErr, "parse %s", file)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidVersion Code = "INVALID_VERSION"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Resolution errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeRemoteFetch      Code = "REMOTE_FETCH_ERROR"
	ErrCodeManifestParse    Code = "MANIFEST_PARSE_ERROR"
	ErrCodeArtifactNotFound Code = "ARTIFACT_NOT_FOUND"
	ErrCodeResolution       Code = "RESOLUTION_ERROR"
	ErrCodeCycle            Code = "DEPENDENCY_CYCLE"

	// Network errors
	ErrCodeRetriesExhausted Code = "RETRIES_EXHAUSTED"

	// Local storage errors
	ErrCodeCache Code = "CACHE_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// coder is implemented by typed errors that carry a fixed code.
type coder interface {
	Code() Code
}

// Is reports whether any error in err's tree has the given error code.
// Both *Error values and typed errors with a Code method are considered,
// so a ResolutionError wrapping an ARTIFACT_NOT_FOUND error matches both codes.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		if e.Code == code {
			return true
		}
	} else if c, ok := err.(coder); ok && c.Code() == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return Is(u.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	if c, ok := err.(coder); ok {
		return c.Code()
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return GetCode(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if code := GetCode(inner); code != "" {
				return code
			}
		}
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

// RemoteFetchError reports a failed request against the package feed.
// Status is the HTTP status code, or 0 when the request never got a response.
type RemoteFetchError struct {
	URL    string
	Status int
	Err    error // transport error when Status is 0 (optional)
}

// Error implements the error interface.
func (e *RemoteFetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Unwrap returns the transport error, if any.
func (e *RemoteFetchError) Unwrap() error { return e.Err }

// Code returns the error code for this error type.
func (e *RemoteFetchError) Code() Code { return ErrCodeRemoteFetch }

// Temporary reports whether the failure is worth retrying: transport
// failures, 429 and 5xx responses.
func (e *RemoteFetchError) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// ResolutionError annotates a failure with the package whose resolution failed.
// Nested resolutions produce nested ResolutionErrors, so the message reads
// as the path from the root package to the failing dependency.
type ResolutionError struct {
	Name    string
	Version string // empty when the latest version was requested
	Err     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Package(), e.Err)
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error { return e.Err }

// Code returns the error code for this error type.
func (e *ResolutionError) Code() Code { return ErrCodeResolution }

// Package returns the failing package as "name@version" or "name@latest".
func (e *ResolutionError) Package() string {
	if e.Version == "" {
		return e.Name + "@latest"
	}
	return e.Name + "@" + e.Version
}
