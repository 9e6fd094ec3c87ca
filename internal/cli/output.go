package cli

import (
	"errors"
	"fmt"
)

// Exit codes for CLI commands. Codes 1 through 120 are the failed plus
// errored unit count of a finished run, capped by run.MaxFailureExitCode.
const (
	ExitSuccess = 0   // Clean run, every unit passed or was skipped
	ExitFatal   = 121 // Configuration, provisioning, or infrastructure error
	ExitUsage   = 122 // Command-line misuse
	ExitAborted = 130 // Interrupt or declined prompt; matches the shell's 128+SIGINT
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. An error without a
// code is command-line misuse: every orchestration path wraps its errors
// before they get here.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}
