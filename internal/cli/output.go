package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/rateguard/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // domain failure (blocking conflicts, partial failures)
	ExitCommandError = 2 // command error (bad flags, missing database, invalid policy)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// GetExitCode extracts the exit code from an error. Returns ExitFailure
// when the error carries no code of its own.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response envelope.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses. Code names the
// engine's error kind so scripts can branch without parsing messages.
type CLIError struct {
	Code    string `json:"code"` // "validation", "conflict", "not_found", "partial_failure", "internal"
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// SuccessText renders data as JSON in json mode but uses the given
// plain rendering in text mode. Commands with structured payloads use
// this so text output stays readable.
func (f *OutputFormatter) SuccessText(data any, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, text)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only in verbose mode, to ErrWriter when
// set so JSON output is never corrupted.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// errorCode maps the engine's error taxonomy to stable CLI codes.
func errorCode(err error) string {
	switch {
	case engine.IsValidation(err):
		return "validation"
	case engine.IsConflict(err):
		return "conflict"
	case engine.IsNotFound(err):
		return "not_found"
	case engine.IsPartialFailure(err):
		return "partial_failure"
	default:
		return "internal"
	}
}

// reportEngineError prints a domain error through the formatter and
// converts it to an ExitError. Validation and not-found are command
// errors; conflicts and partial failures are domain failures.
func reportEngineError(f *OutputFormatter, err error) error {
	code := errorCode(err)

	var details any
	var cerr *engine.ConflictError
	if errors.As(err, &cerr) {
		details = cerr.Report
	}
	var pfe *engine.PartialFailureError
	if errors.As(err, &pfe) {
		details = pfe
	}

	_ = f.Error(code, err.Error(), details)

	exit := ExitFailure
	if code == "validation" || code == "not_found" {
		exit = ExitCommandError
	}
	return &ExitError{Code: exit, Message: err.Error(), Err: err}
}
