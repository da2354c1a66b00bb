package cli

import (
	"context"
	"errors"

	"github.com/alecthomas/kong"
	"github.com/specialistvlad/anda/internal/proc"
)

// Exit codes returned through ExitError.
const (
	CodeFailure   = 1
	CodeUsage     = 2
	CodeCancelled = 130
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(msg string) error {
	return &ExitError{Code: CodeUsage, Message: msg}
}

// exitError maps err onto the exit code taxonomy.
func exitError(err error) error {
	var exitErr *ExitError
	var parseErr *kong.ParseError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return exitErr
	case errors.As(err, &parseErr):
		return &ExitError{Code: CodeUsage, Message: err.Error()}
	case errors.Is(err, proc.ErrCancelled), errors.Is(err, context.Canceled):
		return &ExitError{Code: CodeCancelled, Message: err.Error()}
	default:
		return &ExitError{Code: CodeFailure, Message: err.Error()}
	}
}
