// Package recovery runs the credit recovery pipeline over one or more ledgers.
//
// For each ledger the service:
//   - decodes and parses the ledger text
//   - resolves the fiscal period from the header or the file name
//   - runs every C870 record through the calculator
//   - rolls the outcomes up into a period summary
//   - rebuilds the corrected ledger text
//
// A batch processes its files concurrently on a bounded worker pool, orders
// the results chronologically and optionally writes one corrected ledger per
// file to an output directory.
//
// Example usage:
//
//	table, err := parsers.LoadReferenceFile("base.xlsx", nil)
//	service, err := recovery.NewService(table, recovery.DefaultConfig())
//	result, err := service.ProcessBatch(ctx, &recovery.BatchRequest{
//		LedgerFiles: []string{"sped_01_2024.txt", "sped_02_2024.txt"},
//		OutputDir:   "out",
//	})
package recovery

import (
	"fmt"
	"runtime"
	"time"

	"pis-cofins-recovery-service/internal/calculator"
	"pis-cofins-recovery-service/internal/models"
	"pis-cofins-recovery-service/internal/parsers"
	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// Service orchestrates the recovery pipeline
type Service struct {
	calculator *calculator.Calculator
	config     *Config
	logger     logger.Logger
}

// Config holds configuration options for the recovery service
type Config struct {
	Calculator *calculator.Config
	Encoding   parsers.Encoding
	Workers    int
}

// DefaultConfig returns a default configuration for the recovery service
func DefaultConfig() *Config {
	return &Config{
		Calculator: calculator.DefaultConfig(),
		Encoding:   parsers.EncodingLatin1,
		Workers:    runtime.NumCPU(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Calculator == nil {
		return fmt.Errorf("calculator configuration is required")
	}
	if err := c.Calculator.Validate(); err != nil {
		return fmt.Errorf("invalid calculator configuration: %w", err)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	if _, err := parsers.ParseEncoding(string(c.Encoding)); err != nil {
		return err
	}

	return nil
}

// BatchRequest lists the ledgers of one run
type BatchRequest struct {
	LedgerFiles []string
	// OutputDir receives the corrected ledgers; nothing is written when empty
	OutputDir string
}

// Validate validates the batch request
func (r *BatchRequest) Validate() error {
	if len(r.LedgerFiles) == 0 {
		return fmt.Errorf("at least one ledger file is required")
	}

	seen := make(map[string]bool, len(r.LedgerFiles))
	for _, file := range r.LedgerFiles {
		if file == "" {
			return fmt.Errorf("ledger file path cannot be empty")
		}
		if seen[file] {
			return fmt.Errorf("ledger file listed twice: %s", file)
		}
		seen[file] = true
	}

	return nil
}

// FileResult is the outcome of processing one ledger
type FileResult struct {
	SourceFile   string                       `json:"source_file" yaml:"source_file"`
	Period       Period                       `json:"period" yaml:"period"`
	PeriodSource PeriodSource                 `json:"period_source" yaml:"period_source"`
	Header       *models.LedgerHeader         `json:"header,omitempty" yaml:"header,omitempty"`
	Outcomes     []*models.CalculationOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Summary      *models.PeriodSummary        `json:"summary" yaml:"summary"`
	Stats        parsers.LedgerStats          `json:"stats" yaml:"stats"`
	OutputFile   string                       `json:"output_file,omitempty" yaml:"output_file,omitempty"`

	// Corrected holds the rewritten ledger text
	Corrected string `json:"-" yaml:"-"`
}

// BatchResult contains the results of a batch run
type BatchResult struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	CompanyName string        `json:"company_name" yaml:"company_name"`
	TaxID       string        `json:"tax_id" yaml:"tax_id"`
	CFOPs       []string      `json:"cfops" yaml:"cfops"`

	Files  []*FileResult `json:"files" yaml:"files"`
	Totals *BatchTotals  `json:"totals" yaml:"totals"`

	// Errors lists files that could not be read or written
	Errors *errors.ErrorSummary `json:"errors,omitempty" yaml:"-"`
}

// Summaries returns the period summaries in file order
func (r *BatchResult) Summaries() []*models.PeriodSummary {
	summaries := make([]*models.PeriodSummary, 0, len(r.Files))
	for _, file := range r.Files {
		summaries = append(summaries, file.Summary)
	}
	return summaries
}

// FirstPeriod returns the earliest processed period
func (r *BatchResult) FirstPeriod() (Period, bool) {
	if len(r.Files) == 0 {
		return Period{}, false
	}
	return r.Files[0].Period, true
}

// LastPeriod returns the latest processed period
func (r *BatchResult) LastPeriod() (Period, bool) {
	if len(r.Files) == 0 {
		return Period{}, false
	}
	return r.Files[len(r.Files)-1].Period, true
}

// HasErrors reports whether any file failed
func (r *BatchResult) HasErrors() bool {
	return r.Errors != nil && r.Errors.Total > 0
}

// NewService creates a recovery service over a reference lookup
func NewService(reference calculator.ReferenceLookup, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if reference == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"reference",
			nil,
			nil,
		).WithSuggestion("Load the reference table before creating the service")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "recovery", config, err)
	}

	calc, err := calculator.New(reference, config.Calculator)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "cfops", config.Calculator.EligibleCFOPs, err)
	}

	log := logger.GetGlobalLogger().WithComponent("recovery_service")
	log.WithFields(logger.Fields{
		"cfops":    config.Calculator.SortedCFOPs(),
		"workers":  config.Workers,
		"encoding": config.Encoding,
	}).Debug("Recovery service created")

	return &Service{
		calculator: calc,
		config:     config,
		logger:     log,
	}, nil
}

// GetConfig returns the service configuration
func (s *Service) GetConfig() *Config {
	return s.config
}
