package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseContext provides context information for parsing operations
type ParseContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// EnhancedParseError extends the base ParseError with location details and examples
type EnhancedParseError struct {
	*RecoveryError
	Location    *ParseContext `json:"location"`
	Recoverable bool          `json:"recoverable"`
	Examples    []string      `json:"examples,omitempty"`
}

// Error implements the error interface with the file location appended
func (e *EnhancedParseError) Error() string {
	parts := []string{e.RecoveryError.Error()}

	if e.Location != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
		if e.Location.Line > 0 {
			location += fmt.Sprintf(":%d", e.Location.Line)
		}
		if e.Location.Column != "" {
			location += fmt.Sprintf(" column '%s'", e.Location.Column)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// Unwrap exposes the base RecoveryError so errors.As finds it
func (e *EnhancedParseError) Unwrap() error {
	return e.RecoveryError
}

// GetDetailedError returns a detailed multi-line error description
func (e *EnhancedParseError) GetDetailedError() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("ERROR: %s", e.Message))

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  → File: %s", e.Location.File))
		if e.Location.Line > 0 {
			lines = append(lines, fmt.Sprintf("  → Line: %d", e.Location.Line))
		}
		if e.Location.Column != "" {
			lines = append(lines, fmt.Sprintf("  → Column: %s", e.Location.Column))
		}
		if e.Location.Value != "" {
			lines = append(lines, fmt.Sprintf("  → Value: '%s'", e.Location.Value))
		}
		if e.Location.Expected != "" {
			lines = append(lines, fmt.Sprintf("  → Expected: %s", e.Location.Expected))
		}
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  → Examples:")
		for _, example := range e.Examples {
			lines = append(lines, fmt.Sprintf("    • %s", example))
		}
	}

	return strings.Join(lines, "\n")
}

// NewEnhancedParseError creates a new enhanced parse error
func NewEnhancedParseError(code ErrorCode, location *ParseContext, message string, cause error) *EnhancedParseError {
	baseError := build(cause, CategoryParse, code, message)

	if location != nil {
		baseError.WithContext("file", location.File).
			WithContext("line", location.Line).
			WithContext("column", location.Column).
			WithContext("value", location.Value)
	}

	return &EnhancedParseError{
		RecoveryError: baseError,
		Location:      location,
		Recoverable:   true,
	}
}

// WithExamples adds example values to help fix the error
func (e *EnhancedParseError) WithExamples(examples ...string) *EnhancedParseError {
	e.Examples = examples
	return e
}

// WithSuggestion adds a suggestion and returns the EnhancedParseError
func (e *EnhancedParseError) WithSuggestion(suggestion string) *EnhancedParseError {
	e.RecoveryError.WithSuggestion(suggestion)
	return e
}

// MissingColumnError reports a reference table whose header lacks required columns
func MissingColumnError(file string, missing []string, actualColumns []string) *EnhancedParseError {
	location := &ParseContext{
		File:     file,
		Line:     1,
		Value:    strings.Join(actualColumns, ", "),
		Expected: fmt.Sprintf("columns: %s", strings.Join(missing, ", ")),
	}

	message := fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))
	err := NewEnhancedParseError(CodeMissingColumn, location, message, nil).
		WithExamples("NCM;MVA;ALIQ ENTRADA", "CAPITULO;ITEM;MVA ORIGINAL").
		WithSuggestion("add the missing columns to the reference table header")

	err.Recoverable = false
	return err
}

// EncodingError creates an error for undecodable ledger bytes
func EncodingError(file string, line int, cause error) *EnhancedParseError {
	location := &ParseContext{
		File: file,
		Line: line,
	}

	err := NewEnhancedParseError(CodeEncodingError, location, "file encoding error", cause).
		WithExamples("--encoding latin1", "--encoding utf8").
		WithSuggestion("choose the encoding the ledger was exported with")

	err.Recoverable = false
	return err
}

// UnsupportedFileError creates an error for reference files with an unknown extension
func UnsupportedFileError(file string) *EnhancedParseError {
	ext := filepath.Ext(file)
	location := &ParseContext{
		File:     file,
		Value:    ext,
		Expected: ".xlsx, .xlsm or .csv",
	}

	err := NewEnhancedParseError(CodeUnsupportedExt, location, fmt.Sprintf("unsupported reference file type %q", ext), nil).
		WithSuggestion("export the reference table as .xlsx or .csv")

	err.Recoverable = false
	return err
}
