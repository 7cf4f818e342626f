package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of transport errors
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a transport error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// FromStatusCode classifies an HTTP status into a transport error
func FromStatusCode(code int, msg string) *Error {
	t := ErrorTypeUnknown
	switch {
	case code == 0:
		t = ErrorTypeNetwork
	case code == 429:
		t = ErrorTypeRateLimit
	case code == 401 || code == 403:
		t = ErrorTypeAuth
	case code == 404:
		t = ErrorTypeNotFound
	case code >= 500:
		t = ErrorTypeServerError
	}
	return &Error{Type: t, Message: msg, Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

var (
	// ErrCancelled marks a run stopped by the operator. Staged data has been
	// removed and no state file was written.
	ErrCancelled = stderrors.New("run cancelled")

	// ErrRunInProgress is returned when another process holds the data root lock.
	ErrRunInProgress = stderrors.New("another run is in progress for this data root")
)

// CorruptStateError reports a state file that exists but cannot be decoded.
// It is fatal: the file is never repaired automatically.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// UnhandledPlacementTransition is returned for an (old, new, disposition)
// combination the migration table does not cover.
type UnhandledPlacementTransition struct {
	Category    string
	Old         string
	New         string
	Disposition string
}

func (e *UnhandledPlacementTransition) Error() string {
	return fmt.Sprintf("unhandled placement transition for %q: %s -> %s (%s)",
		e.Category, e.Old, e.New, e.Disposition)
}

// ItemFieldUnavailable reports a page field that could not be located
type ItemFieldUnavailable struct {
	Field string
}

func (e *ItemFieldUnavailable) Error() string {
	return fmt.Sprintf("field %s unavailable", e.Field)
}

// TransientCrawlError reports a scroll pass that produced no items
type TransientCrawlError struct {
	Category string
	Pass     int
}

func (e *TransientCrawlError) Error() string {
	return fmt.Sprintf("no items found for %q on pass %d", e.Category, e.Pass)
}

// UserInputError reports an invalid interactive answer
type UserInputError struct {
	Input  string
	Reason string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// IsCorruptState reports whether err wraps a CorruptStateError
func IsCorruptState(err error) bool {
	var target *CorruptStateError
	return stderrors.As(err, &target)
}

// IsFieldUnavailable reports whether err wraps an ItemFieldUnavailable
func IsFieldUnavailable(err error) bool {
	var target *ItemFieldUnavailable
	return stderrors.As(err, &target)
}
