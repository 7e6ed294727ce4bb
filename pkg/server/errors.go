package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server conditions.
var (
	// ErrAlreadyRunning is returned when the socket path is bound by
	// another process.
	ErrAlreadyRunning = errors.New("server: already running")

	// ErrTooManyActivationFDs is returned when socket activation passes
	// more than one descriptor.
	ErrTooManyActivationFDs = errors.New("server: too many activation sockets")

	// ErrNoDevice is returned when device selection yields no primary device.
	ErrNoDevice = errors.New("server: no HMD found")

	// ErrNotInitialized is returned by Run before a successful Init.
	ErrNotInitialized = errors.New("server: not initialized")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("server: closed")

	// ErrCaptureUnsupported is returned when the compositor cannot take
	// snapshots.
	ErrCaptureUnsupported = errors.New("server: compositor does not support capture")
)

// ClientError wraps an error with client context for debugging.
type ClientError struct {
	ClientID string
	Op       string // Operation that failed
	Err      error  // Underlying error
}

// Error returns the error message with client context.
func (e *ClientError) Error() string {
	if e.ClientID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: client %s: %s: %v", e.ClientID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(clientID, op string, err error) *ClientError {
	return &ClientError{
		ClientID: clientID,
		Op:       op,
		Err:      err,
	}
}
