package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/KilimcininKorOglu/obacore/internal/backend"
	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and failed (not found, schema violation, verify problems)
	ExitCommandError = 2 // Command error (bad flags, invalid config, store cannot be opened)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // output already written by the command
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

// reportedExit is an ExitError whose outcome the command already printed.
func reportedExit(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message, reported: true}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in JSON responses.
const (
	CodeGeneric      = "error"
	CodeUsage        = "usage"
	CodeNotFound     = "not_found"
	CodeExists       = "exists"
	CodeViolation    = "schema_violation"
	CodeInvalid      = "invalid_entry"
	CodeConflict     = "write_conflict"
	CodeHalted       = "halted"
	CodeStore        = "store"
	CodeInconsistent = "inconsistent"
	CodeFilter       = "invalid_filter"
	CodeTimeout      = "timeout"
)

// errorCode classifies err for machine-readable output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, backend.ErrEntryExists), errors.Is(err, backend.ErrDuplicateUUID):
		return CodeExists
	case errors.Is(err, schema.ErrViolation):
		return CodeViolation
	case errors.Is(err, backend.ErrInvalidEntry), errors.Is(err, entry.ErrInvalidModification):
		return CodeInvalid
	case errors.Is(err, backend.ErrWriteConflict):
		return CodeConflict
	case errors.Is(err, backend.ErrHalted):
		return CodeHalted
	case errors.Is(err, backend.ErrInconsistent):
		return CodeInconsistent
	case errors.Is(err, filter.ErrInvalidFilter):
		return CodeFilter
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	var serr *backend.StoreError
	if errors.As(err, &serr) {
		return CodeStore
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return CodeUsage
	}
	return CodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics go here so JSON on Writer stays parseable
	Verbose   bool
}

// CLIResponse is the JSON response envelope.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data as a JSON envelope, or calls text for human output.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Error reports err in the configured format. Text errors go to ErrWriter.
func (f *OutputFormatter) Error(err error, details any) {
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    errorCode(err),
				Message: err.Error(),
				Details: details,
			},
		})
		return
	}
	w := f.errWriter()
	fmt.Fprintf(w, "Error: %v\n", err)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// EntryView is the JSON form of an entry.
type EntryView struct {
	ID         entry.ID            `json:"id"`
	Attributes map[string][]string `json:"attributes"`
}

func viewEntry(e *entry.Entry) EntryView {
	return EntryView{ID: e.ID(), Attributes: e.Attributes()}
}

// writeEntry prints e one attribute value per line, preceded by its ID.
func writeEntry(w io.Writer, e *entry.Entry) {
	fmt.Fprintf(w, "id: %d\n", e.ID())
	for name, values := range e.All() {
		for _, v := range values {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
}

func writeEntries(w io.Writer, entries []*entry.Entry) {
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeEntry(w, e)
	}
}
