package errors

import (
	"errors"
	"fmt"
)

// Category represents the subsystem an error belongs to.
type Category string

const (
	CategoryStartup  Category = "startup"
	CategoryShm      Category = "shm"
	CategorySocket   Category = "socket"
	CategoryDevice   Category = "device"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// XRError is a structured error carrying a registry code, an operator hint
// and the process exit code for startup failures.
type XRError struct {
	// Code is a unique error identifier (e.g., "E110").
	Code string

	// Category is the subsystem that failed.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Exit is the process exit status for this error. Zero means the
	// error is not a startup failure and maps to the generic status.
	Exit int

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *XRError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *XRError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *XRError) WithSuggestion(s string) *XRError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *XRError) WithDetail(d string) *XRError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *XRError) Wrap(err error) *XRError {
	e.Wrapped = err
	return e
}

// ExitCode returns the process exit status for the error. Registered
// startup failures carry distinct negative codes; anything else is -1.
func (e *XRError) ExitCode() int {
	if e.Exit != 0 {
		return e.Exit
	}
	return ExitGeneric
}

// New creates an XRError from a registered error code.
func New(code string) *XRError {
	template, ok := registry[code]
	if !ok {
		return &XRError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &XRError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
		Exit:       template.Exit,
	}
}

// Newf creates a new XRError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *XRError {
	return &XRError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an XRError. An error chain that
// already contains an XRError is returned as that XRError.
func FromError(err error, code string) *XRError {
	if err == nil {
		return nil
	}
	var xe *XRError
	if errors.As(err, &xe) {
		return xe
	}
	return New(code).Wrap(err)
}

// ExitCode maps any error to a process exit status: 0 for nil, the
// registered code for an XRError anywhere in the chain, ExitGeneric
// otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var xe *XRError
	if errors.As(err, &xe) {
		return xe.ExitCode()
	}
	return ExitGeneric
}
