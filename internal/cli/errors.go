// Package cli provides error handling utilities for CLI output.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

// exitInterrupted is the shell convention for SIGINT.
const exitInterrupted = 130

// PrintError prints an error to w with appropriate formatting.
// If the error is an ExportError, it uses the user-friendly format.
// Otherwise, it prints a simple error message.
func PrintError(w io.Writer, err error) {
	if jsonOut {
		if expErr := docerrors.AsExportError(err); expErr != nil {
			_ = printJSON(w, map[string]any{"error": expErr})
			return
		}
		_ = printJSON(w, map[string]any{"error": map[string]string{"what": err.Error()}})
		return
	}
	if expErr := docerrors.AsExportError(err); expErr != nil {
		_, _ = fmt.Fprintln(w, expErr.UserMessage())
		if verbose {
			// In verbose mode, also print the error code and cause
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", expErr.Code)
			if expErr.Cause != nil {
				_, _ = fmt.Fprintf(w, "Cause: %v\n", expErr.Cause)
			}
		}
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	if expErr := docerrors.AsExportError(err); expErr != nil {
		return expErr.ExitCode()
	}
	return 1
}
