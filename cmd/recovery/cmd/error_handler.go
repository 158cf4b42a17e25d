package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code for it
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		return h.handleErrorSummary(summary)
	}

	if recoveryErr, ok := errors.AsRecoveryError(err); ok {
		return h.handleRecoveryError(recoveryErr)
	}

	return h.handleGenericError(err)
}

// handleRecoveryError handles RecoveryError with detailed context
func (h *CLIErrorHandler) handleRecoveryError(err *errors.RecoveryError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleErrorSummary reports a batch in which no ledger could be processed
func (h *CLIErrorHandler) handleErrorSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: no ledger could be processed (%s)\n", summary.Error())

	for i, err := range summary.Errors {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, err.Message)
		if err.Suggestion != "" {
			fmt.Fprintf(h.out, "     Suggestion: %s\n", err.Suggestion)
		}
		if i >= 9 && len(summary.Errors) > 10 {
			fmt.Fprintf(h.out, "  ... and %d more errors\n", len(summary.Errors)-10)
			break
		}
	}

	return summary.GetExitCode()
}

// handleGenericError handles errors outside the RecoveryError family,
// mostly flag parsing errors from cobra
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'recovery --help' for usage.\n")

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure the output directory is writable`

	case errors.CategoryParse:
		return `Parse error help:
• Ledgers must be pipe-delimited SPED text (|0000|...|)
• Reference tables must be .xlsx, .xlsm or .csv with an NCM column and a markup (MVA) column
• Use --encoding utf8 if the ledger is not latin-1
• Use 'recovery inspect --ledger <file>' to see what the parser reads`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that every ledger path is listed once
• Verify the reference table has at least one row with NCM and markup`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and RECOVERY_* environment variables
• CFOP codes must have four digits (e.g. 5405,5403)
• Verify configuration file syntax if using --config
• Use 'recovery process --help' to see all available options`

	case errors.CategoryCalculation:
		return `Calculation error help:
• Check that the reference table has NCM rows with a positive markup
• Use 'recovery inspect --ledger <file> --reference <table>' to check NCM coverage`

	default:
		return `For more help:
• Use 'recovery --help' for general help
• Use 'recovery process --help' for command-specific help
• Run again with --verbose for the underlying error`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return stderrors.Is(err, fs.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
