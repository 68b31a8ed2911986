package directory

import "errors"

// StoreError represents a domain error from directory operations.
//
// These are business logic errors (row not found, bad input) as opposed to
// infrastructure errors (network failure, disk error), which are wrapped
// and propagated as plain errors. Transport layers translate StoreError
// codes to protocol-specific responses (HTTP status codes, etc.).
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Table is the table related to the error, if applicable
	Table string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Table != "" {
		return e.Message + ": " + e.Table
	}
	return e.Message
}

// ErrorCode is the category of a StoreError.
type ErrorCode int

const (
	// ErrNotFound indicates no record matched the criteria
	ErrNotFound ErrorCode = iota

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: empty identity, unknown table name
	ErrInvalidArgument

	// ErrUnavailable indicates the backend could not be reached or timed
	// out; the operation may succeed on retry
	ErrUnavailable
)

// NotFound returns the StoreError backends use when a scan found no match.
func NotFound(table string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "no matching record", Table: table}
}

// InvalidArgument returns a StoreError for a caller-supplied bad value.
func InvalidArgument(message string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message}
}

// Unavailable returns a StoreError for an unreachable backend.
func Unavailable(table, message string) *StoreError {
	return &StoreError{Code: ErrUnavailable, Message: message, Table: table}
}

// IsNotFound reports whether err is a StoreError carrying ErrNotFound.
func IsNotFound(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == ErrNotFound
}
