// Package errors defines the sentinel and structured errors shared by the
// execution worker, messaging and storage layers. Script failures are not
// errors in this sense; they travel inside results as ordinary data.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates that the worker has no live NATS connection
	ErrNotConnected = errors.New("not connected to NATS")

	// ErrInvalidSubject indicates that the provided subject is invalid
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrInvalidRequest indicates that an execution request envelope is malformed
	ErrInvalidRequest = errors.New("invalid execution request")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrPayloadTooLarge indicates that a payload exceeds the inline size
	// limit and no blob store is configured to offload it
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrBlobNotFound indicates that a referenced blob could not be fetched
	ErrBlobNotFound = errors.New("blob not found")

	// ErrSubscriptionFailed indicates that a subscription could not be created
	ErrSubscriptionFailed = errors.New("subscription failed")
)

// Error represents a structured worker error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotConnected checks if an error is a not connected error
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
