// Package errors provides structured error types for docrewind.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for docrewind.
const (
	// Export pipeline errors, one per stage that can fail
	CodeCompactionFailed     Code = "COMPACTION_FAILED"
	CodeEnumerationFailed    Code = "ENUMERATION_FAILED"
	CodeFetchFailed          Code = "FETCH_FAILED"
	CodeReconstructionFailed Code = "RECONSTRUCTION_FAILED"
	CodeStreamFailed         Code = "STREAM_FAILED"

	// Store errors
	CodeDocNotFound Code = "DOC_NOT_FOUND"

	// Archive errors
	CodeArchiveInvalid Code = "ARCHIVE_INVALID"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"
)

// Category groups error codes for exit status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryInternal
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeCompactionFailed:     CategoryUnavailable,
	CodeEnumerationFailed:    CategoryUnavailable,
	CodeFetchFailed:          CategoryUnavailable,
	CodeReconstructionFailed: CategoryInternal,
	CodeStreamFailed:         CategoryInternal,
	CodeDocNotFound:          CategoryNotFound,
	CodeArchiveInvalid:       CategoryBadRequest,
	CodeConfigInvalid:        CategoryBadRequest,
	CodeConfigMissing:        CategoryBadRequest,
}

// ExitCode returns the process exit code for a category.
// Codes follow the BSD sysexits conventions where one fits.
func (c Category) ExitCode() int {
	switch c {
	case CategoryNotFound:
		return 66 // EX_NOINPUT
	case CategoryBadRequest:
		return 64 // EX_USAGE
	case CategoryUnavailable:
		return 69 // EX_UNAVAILABLE
	case CategoryInternal:
		return 70 // EX_SOFTWARE
	default:
		return 1
	}
}

// ExportError is the structured error type for docrewind.
type ExportError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *ExportError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString("\n\nCause: ")
		b.WriteString(e.Cause.Error())
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category.
func (e *ExportError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// ExitCode returns the process exit code for this error.
func (e *ExportError) ExitCode() int {
	return e.Category().ExitCode()
}

// MarshalJSON implements json.Marshaler.
func (e *ExportError) MarshalJSON() ([]byte, error) {
	type alias ExportError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an ExportError with the same code.
func (e *ExportError) Is(target error) bool {
	t, ok := target.(*ExportError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ExportError) WithCause(err error) *ExportError {
	return &ExportError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrCompaction returns an error for a failed flush of pending updates.
func ErrCompaction(projectID string) *ExportError {
	return &ExportError{
		Code: CodeCompactionFailed,
		What: fmt.Sprintf("compact pending updates for project %s", projectID),
		Why:  "Pending updates must be flushed before history can be read",
		Fix:  "Check the history store is reachable, then run 'docrewind compact' to retry",
	}
}

// ErrEnumeration returns an error for a failed document listing.
func ErrEnumeration(projectID string) *ExportError {
	return &ExportError{
		Code: CodeEnumerationFailed,
		What: fmt.Sprintf("list documents of project %s", projectID),
	}
}

// ErrFetch returns an error for a failed read of a document or its updates.
// A document that cannot be read is never skipped.
func ErrFetch(docID, what string) *ExportError {
	return &ExportError{
		Code: CodeFetchFailed,
		What: fmt.Sprintf("fetch %s of document %s", what, docID),
	}
}

// ErrReconstruction returns an error for an update that could not be
// reverse-applied. It is logged, not propagated.
func ErrReconstruction(docID string, version int64) *ExportError {
	return &ExportError{
		Code: CodeReconstructionFailed,
		What: fmt.Sprintf("rewind update v%d of document %s", version, docID),
	}
}

// ErrStream returns an error for a failed archive or sink write.
func ErrStream(what string) *ExportError {
	return &ExportError{
		Code: CodeStreamFailed,
		What: fmt.Sprintf("write archive: %s", what),
	}
}

// ErrDocNotFound returns an error when a document does not exist.
func ErrDocNotFound(projectID, docID string) *ExportError {
	return &ExportError{
		Code: CodeDocNotFound,
		What: fmt.Sprintf("document %s not found", docID),
		Why:  fmt.Sprintf("No document with this ID exists in project %s", projectID),
		Fix:  "Run 'docrewind docs <project>' to list available documents",
	}
}

// ErrArchiveInvalid returns an error for an archive that cannot be read.
func ErrArchiveInvalid(path, reason string) *ExportError {
	return &ExportError{
		Code: CodeArchiveInvalid,
		What: fmt.Sprintf("invalid archive %s", path),
		Why:  reason,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *ExportError {
	return &ExportError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .docrewind/config.yaml and DOCREWIND_* environment variables",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field string) *ExportError {
	return &ExportError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This field is required but not set in configuration",
		Fix:  fmt.Sprintf("Add '%s' to .docrewind/config.yaml", field),
	}
}

// AsExportError attempts to convert an error to an ExportError.
// Returns nil if the error is not an ExportError.
func AsExportError(err error) *ExportError {
	var exportErr *ExportError
	if stderrors.As(err, &exportErr) {
		return exportErr
	}
	return nil
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return stderrors.Is(err, &ExportError{Code: code})
}
