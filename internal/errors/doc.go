// Package errors provides structured, actionable errors for the xripc
// server and its CLI.
//
// Each error has a registry code (e.g. "E110") that maps to a short
// message, a longer explanation, an operator hint and, for startup
// failures, a distinct process exit status.
//
// # Usage
//
//	err := errors.New("E110").Wrap(bindErr)
//	errors.PrintError(os.Stderr, err)
//	os.Exit(errors.ExitCode(err))
//
// Package-level sentinel errors (server.ErrAlreadyRunning and friends)
// are wrapped into registry errors at the process boundary, so errors.Is
// keeps working on the result.
package errors
