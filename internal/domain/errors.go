package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidCursor    = errors.New("invalid cursor value")
	ErrTreeIntegrity    = errors.New("message tree integrity violated")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// InvalidCursorError reports a pagination token that matches neither accepted shape.
type InvalidCursorError struct {
	Value string
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid cursor value %q", e.Value)
}

func (e *InvalidCursorError) StatusCode() int { return http.StatusBadRequest }

// Is allows errors.Is() to match against ErrInvalidCursor
func (e *InvalidCursorError) Is(target error) bool {
	return target == ErrInvalidCursor
}

// TreeIntegrityError indicates corrupt parent linkage inside a message tree
// (cycle, dangling parent, unterminated chain). It is never repaired silently.
type TreeIntegrityError struct {
	TreeID    string
	MessageID string
	Reason    string
}

func (e *TreeIntegrityError) Error() string {
	return fmt.Sprintf("message tree %s: message %s: %s", e.TreeID, e.MessageID, e.Reason)
}

func (e *TreeIntegrityError) StatusCode() int { return http.StatusInternalServerError }

// Is allows errors.Is() to match against ErrTreeIntegrity
func (e *TreeIntegrityError) Is(target error) bool {
	return target == ErrTreeIntegrity
}

// StoreError wraps a failure of the underlying store (connection, transaction, I/O).
// Op names the store operation that failed.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a StoreError for op
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) StatusCode() int { return http.StatusServiceUnavailable }

// Is allows errors.Is() to match against ErrStoreUnavailable
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
