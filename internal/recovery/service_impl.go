package recovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"pis-cofins-recovery-service/internal/parsers"
	"pis-cofins-recovery-service/internal/rewriter"
	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// ProcessLedger runs the pipeline over one ledger's decoded text. name is
// used for period resolution and reporting only.
func (s *Service) ProcessLedger(ctx context.Context, name string, content string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "ledger processing", err).
			WithContext("file_path", name)
	}

	op := logger.NewOperationLogger("process_ledger", s.logger).WithField("file_path", name)

	parser := parsers.NewLedgerParser()
	header, _, _ := parser.Load(content)
	period, source := ResolvePeriod(name, header)
	op.WithField("period", period.String()).Step("Ledger parsed")

	outcomes := s.calculator.CalculateAll(parser.Transactions(), parser.NCMForItem)

	summary := Summarize(name, period, outcomes)

	corrected := rewriter.Generate(parser.Lines(), rewriter.IndexByLine(outcomes))

	stats := parser.Stats()
	if stats.DefaultedFields > 0 {
		op.WithField("defaulted_fields", stats.DefaultedFields).
			WithField("samples", stats.DefaultedSamples).
			Warning("Malformed numeric fields were treated as zero")
	}
	if source == PeriodUnknown {
		op.Warning("Period not found in header or file name")
	}

	op.WithField("records", summary.TotalRecords).
		WithField("calculated", summary.Calculated).
		WithField("total_credit", summary.TotalCredit.StringFixed(2)).
		Success("Ledger processed")

	return &FileResult{
		SourceFile:   name,
		Period:       period,
		PeriodSource: source,
		Header:       header,
		Outcomes:     outcomes,
		Summary:      summary,
		Stats:        stats,
		Corrected:    corrected,
	}, nil
}

// ProcessBatch reads, processes and optionally writes every ledger of a
// request. Files that fail are collected in BatchResult.Errors and do not
// stop the batch; an error is returned only when the request is invalid, no
// file succeeded, or the context was cancelled.
func (s *Service) ProcessBatch(ctx context.Context, request *BatchRequest) (*BatchResult, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "batch_request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "ledger_files", request.LedgerFiles, err).
			WithSuggestion("Pass at least one ledger with --ledgers")
	}

	result := &BatchResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		CFOPs:     s.config.Calculator.SortedCFOPs(),
	}

	log := s.logger.WithFields(logger.Fields{
		"run_id": result.RunID,
		"files":  len(request.LedgerFiles),
	})
	log.Info("Starting batch")

	files, failures := s.processFiles(ctx, request.LedgerFiles)

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Period != b.Period {
			return a.Period.Less(b.Period)
		}
		return a.SourceFile < b.SourceFile
	})

	for _, file := range files {
		if file.Header != nil {
			result.CompanyName = file.Header.CompanyName
			result.TaxID = file.Header.TaxID
			break
		}
	}

	if request.OutputDir != "" {
		failures = append(failures, s.writeOutputs(request.OutputDir, files)...)
	}

	result.Files = files
	result.Totals = Totalize(result.Summaries())
	result.Errors = errors.NewErrorSummary(failures)
	result.Duration = time.Since(result.StartedAt)

	log.WithFields(logger.Fields{
		"processed":    len(files),
		"failed":       len(failures),
		"total_credit": result.Totals.TotalCredit.StringFixed(2),
		"duration":     result.Duration,
	}).Info("Batch completed")

	if err := ctx.Err(); err != nil {
		return result, errors.InternalError(errors.CodeCancelled, "batch processing", err).
			WithContext("processed", len(files))
	}

	if len(files) == 0 {
		return result, result.Errors
	}

	return result, nil
}

// processFiles runs each ledger on the worker pool. Results land in
// per-index slots so no locking is needed.
func (s *Service) processFiles(ctx context.Context, paths []string) ([]*FileResult, []*errors.RecoveryError) {
	results := make([]*FileResult, len(paths))
	failures := make([]*errors.RecoveryError, len(paths))

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "ledger batch",
		Total:     int64(len(paths)),
		Logger:    s.logger,
	})

	p := pool.New().WithMaxGoroutines(s.config.Workers).WithContext(ctx)
	for i, path := range paths {
		p.Go(func(ctx context.Context) error {
			result, err := s.processFile(ctx, path)
			if err != nil {
				failures[i] = asRecoveryError(err, path)
				progress.Increment(true)
				return nil
			}
			results[i] = result
			progress.Increment(false)
			return nil
		})
	}
	_ = p.Wait()
	progress.Complete()

	files := make([]*FileResult, 0, len(paths))
	for _, r := range results {
		if r != nil {
			files = append(files, r)
		}
	}

	var errs []*errors.RecoveryError
	for _, f := range failures {
		if f != nil {
			errs = append(errs, f)
		}
	}

	return files, errs
}

func (s *Service) processFile(ctx context.Context, path string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := parsers.ReadLedgerFile(path, s.config.Encoding)
	if err != nil {
		return nil, err
	}

	return s.ProcessLedger(ctx, path, content)
}

// writeOutputs stores each corrected ledger under its period name. Files
// sharing a period get a numeric suffix in processing order.
func (s *Service) writeOutputs(dir string, files []*FileResult) []*errors.RecoveryError {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []*errors.RecoveryError{errors.FileError(errors.CodeDirectoryError, dir, err)}
	}

	var failures []*errors.RecoveryError
	used := make(map[string]int, len(files))

	for _, file := range files {
		name := uniqueName(file.Period.OutputFileName(), used)
		target := filepath.Join(dir, name)

		data, err := parsers.EncodeLedger(file.Corrected, s.config.Encoding)
		if err != nil {
			failures = append(failures, errors.FileError(errors.CodeWriteFailed, target, err))
			continue
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			failures = append(failures, errors.FileError(errors.CodeWriteFailed, target, err))
			continue
		}

		file.OutputFile = target
		s.logger.WithFields(logger.Fields{
			"source": file.SourceFile,
			"output": target,
		}).Debug("Corrected ledger written")
	}

	return failures
}

func uniqueName(name string, used map[string]int) string {
	used[name]++
	if n := used[name]; n > 1 {
		ext := filepath.Ext(name)
		return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
	}
	return name
}

func asRecoveryError(err error, path string) *errors.RecoveryError {
	if recoveryErr, ok := errors.AsRecoveryError(err); ok {
		return recoveryErr
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return errors.InternalError(errors.CodeCancelled, "ledger processing", err).
			WithContext("file_path", path)
	}
	return errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeProcessingError,
		fmt.Sprintf("failed to process %s", path))
}
