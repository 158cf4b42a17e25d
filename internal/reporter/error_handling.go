package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pis-cofins-recovery-service/internal/recovery"
	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Use one of: console, json, yaml, csv")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely generates a report, falling back to console format
// when a structured format fails.
func (srg *SafeReportGenerator) GenerateReportSafely(result *recovery.BatchResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.generateWithFallback(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	srg.logger.Info("Report generation completed successfully")
	return nil
}

// WriteReportFile writes the report to path. When path cannot be created a
// backup next to it is tried before giving up.
func (srg *SafeReportGenerator) WriteReportFile(result *recovery.BatchResult, path string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.FileError(errors.CodeDirectoryError, dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		if !isFileError(err) {
			return "", errors.FileError(errors.CodeWriteFailed, path, err)
		}

		backup := generateBackupPath(path)
		srg.logger.WithError(err).WithFields(logger.Fields{
			"original_file": path,
			"backup_file":   backup,
		}).Warn("Could not create report file, trying backup location")

		file, err = os.Create(backup)
		if err != nil {
			return "", errors.FileError(errors.CodeWriteFailed, path, err)
		}
		path = backup
	}
	defer file.Close()

	if err := srg.GenerateReportSafely(result, file); err != nil {
		return path, err
	}
	return path, nil
}

func (srg *SafeReportGenerator) validateInputs(result *recovery.BatchResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a valid batch result")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	if result.Totals == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"totals",
			nil,
			nil,
		).WithSuggestion("Ensure the batch result was produced by ProcessBatch")
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFallback(result *recovery.BatchResult, writer io.Writer) error {
	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.config.Format == FormatConsole || isFileError(err) {
		return wrapGenerationError(err)
	}

	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole
	fallback, ferr := NewReportGenerator(&fallbackConfig)
	if ferr != nil {
		return wrapGenerationError(err)
	}

	fmt.Fprintf(writer, "\nNOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", err)

	if ferr := fallback.GenerateReport(result, writer); ferr != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", err, ferr),
		)
	}

	srg.logger.WithField("fallback_format", FormatConsole).Info("Report generated using format fallback")
	return nil
}

func wrapGenerationError(err error) error {
	if recoveryErr, ok := errors.AsRecoveryError(err); ok {
		return recoveryErr
	}

	return errors.InternalError(
		errors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	if os.IsPermission(err) || os.IsNotExist(err) || os.IsExist(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "disk full")
}

func generateBackupPath(originalPath string) string {
	ext := filepath.Ext(originalPath)
	return strings.TrimSuffix(originalPath, ext) + "_backup" + ext
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
