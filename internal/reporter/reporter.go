// Package reporter renders batch results of the credit recovery pipeline.
//
// Supported output formats:
//   - Console: monthly summary table, totals and skip reasons for a terminal
//   - JSON: batch document with one entry per period
//   - YAML: the same document as JSON
//   - CSV: one row per calculation outcome with before/after values
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:         reporter.FormatCSV,
//		IncludeSkipped: true,
//		CSVDelimiter:   ';',
//		CSVHeaders:     true,
//		TableMaxWidth:  120,
//	})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pis-cofins-recovery-service/internal/models"
	"pis-cofins-recovery-service/internal/recovery"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeOutcomes adds per-line outcomes to JSON and YAML documents
	IncludeOutcomes bool `json:"include_outcomes"`
	// IncludeSkipped adds skipped outcomes to CSV and JSON/YAML detail
	IncludeSkipped bool `json:"include_skipped"`
	// MaxErrors limits the failures listed on the console
	MaxErrors int `json:"max_errors"`

	TableMaxWidth int `json:"table_max_width"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatConsole,
		IncludeOutcomes: false,
		IncludeSkipped:  false,
		MaxErrors:       10,
		TableMaxWidth:   120,
		CSVDelimiter:    ',',
		CSVHeaders:      true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 80 {
		return fmt.Errorf("table max width must be at least 80 characters, got %d", c.TableMaxWidth)
	}

	if c.Format == FormatCSV {
		switch c.CSVDelimiter {
		case ',', ';', '\t', '|':
		default:
			return fmt.Errorf("unsupported CSV delimiter %q", c.CSVDelimiter)
		}
	}

	return nil
}

// ReportGenerator generates recovery reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes a report of the batch result to writer
func (rg *ReportGenerator) GenerateReport(result *recovery.BatchResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("batch result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatYAML:
		return rg.generateYAMLReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *recovery.BatchResult, writer io.Writer) error {
	separator := strings.Repeat("=", min(rg.config.TableMaxWidth, 96))

	fmt.Fprintf(writer, "PIS/COFINS CREDIT RECOVERY REPORT (ICMS-ST EXCLUSION)\n")
	fmt.Fprintf(writer, "Run ID:    %s\n", result.RunID)
	fmt.Fprintf(writer, "Generated: %s\n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Duration:  %v\n", result.Duration.Round(time.Millisecond))
	if result.CompanyName != "" {
		fmt.Fprintf(writer, "Company:   %s\n", result.CompanyName)
		fmt.Fprintf(writer, "CNPJ:      %s\n", formatCNPJ(result.TaxID))
	}
	if first, ok := result.FirstPeriod(); ok {
		last, _ := result.LastPeriod()
		fmt.Fprintf(writer, "Period:    %s/%s to %s/%s\n", first.MonthName(), first.Year, last.MonthName(), last.Year)
	}
	fmt.Fprintf(writer, "CFOPs:     %s\n\n", strings.Join(result.CFOPs, ", "))

	fmt.Fprintf(writer, "=== MONTHLY SUMMARY ===\n")
	rg.printSummaryTable(result, writer)
	fmt.Fprintf(writer, "%s\n\n", separator)

	fmt.Fprintf(writer, "=== TOTALS ===\n")
	rg.printTotals(result.Totals, writer)
	fmt.Fprintf(writer, "\n")

	if result.Totals != nil && len(result.Totals.SkipReasons) > 0 {
		fmt.Fprintf(writer, "=== SKIP REASONS ===\n")
		rg.printSkipReasons(result.Totals.SkipReasons, writer)
		fmt.Fprintf(writer, "\n")
	}

	if outputs := outputFiles(result); len(outputs) > 0 {
		fmt.Fprintf(writer, "=== CORRECTED LEDGERS ===\n")
		for _, output := range outputs {
			fmt.Fprintf(writer, "  %s\n", output)
		}
		fmt.Fprintf(writer, "\n")
	}

	if result.HasErrors() {
		fmt.Fprintf(writer, "=== ERRORS ===\n")
		rg.printErrors(result, writer)
	}

	return nil
}

// reportDocument is the JSON/YAML representation of a batch
type reportDocument struct {
	RunID       string                `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	DurationMS  int64                 `json:"duration_ms" yaml:"duration_ms"`
	CompanyName string                `json:"company_name,omitempty" yaml:"company_name,omitempty"`
	TaxID       string                `json:"tax_id,omitempty" yaml:"tax_id,omitempty"`
	CFOPs       []string              `json:"cfops" yaml:"cfops"`
	Periods     []periodEntry         `json:"periods" yaml:"periods"`
	Totals      *recovery.BatchTotals `json:"totals" yaml:"totals"`
	Errors      []errorEntry          `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type periodEntry struct {
	Label      string                       `json:"label" yaml:"label"`
	SourceFile string                       `json:"source_file" yaml:"source_file"`
	OutputFile string                       `json:"output_file,omitempty" yaml:"output_file,omitempty"`
	Summary    *models.PeriodSummary        `json:"summary" yaml:"summary"`
	Outcomes   []*models.CalculationOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

type errorEntry struct {
	Category   string `json:"category" yaml:"category"`
	Code       string `json:"code" yaml:"code"`
	Message    string `json:"message" yaml:"message"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

func (rg *ReportGenerator) buildDocument(result *recovery.BatchResult) *reportDocument {
	doc := &reportDocument{
		RunID:       result.RunID,
		GeneratedAt: result.StartedAt,
		DurationMS:  result.Duration.Milliseconds(),
		CompanyName: result.CompanyName,
		TaxID:       result.TaxID,
		CFOPs:       result.CFOPs,
		Periods:     make([]periodEntry, 0, len(result.Files)),
		Totals:      result.Totals,
	}

	for _, file := range result.Files {
		entry := periodEntry{
			Label:      file.Summary.Label(),
			SourceFile: file.SourceFile,
			OutputFile: file.OutputFile,
			Summary:    file.Summary,
		}
		if rg.config.IncludeOutcomes {
			entry.Outcomes = rg.selectOutcomes(file.Outcomes)
		}
		doc.Periods = append(doc.Periods, entry)
	}

	if result.HasErrors() {
		for _, err := range result.Errors.Errors {
			doc.Errors = append(doc.Errors, errorEntry{
				Category:   string(err.Category),
				Code:       string(err.Code),
				Message:    err.Message,
				Suggestion: err.Suggestion,
			})
		}
	}

	return doc
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *recovery.BatchResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.buildDocument(result))
}

// generateYAMLReport generates the JSON document as YAML
func (rg *ReportGenerator) generateYAMLReport(result *recovery.BatchResult, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)

	if err := encoder.Encode(rg.buildDocument(result)); err != nil {
		return fmt.Errorf("failed to encode YAML report: %w", err)
	}
	return encoder.Close()
}

var csvHeaders = []string{
	"File",
	"Period",
	"Line",
	"Item_Code",
	"NCM",
	"CFOP",
	"Status",
	"Skip_Reason",
	"Item_Value",
	"Basis_PIS_Original",
	"PIS_Original",
	"Basis_COFINS_Original",
	"COFINS_Original",
	"Markup",
	"Tax_Rate",
	"ICMS_ST_Base",
	"ICMS_ST_Value",
	"Basis_PIS_New",
	"PIS_New",
	"Basis_COFINS_New",
	"COFINS_New",
	"Credit_PIS",
	"Credit_COFINS",
	"Credit_Total",
}

// generateCSVReport generates a CSV report with outcome details
func (rg *ReportGenerator) generateCSVReport(result *recovery.BatchResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, file := range result.Files {
		for _, o := range rg.selectOutcomes(file.Outcomes) {
			record := []string{
				file.SourceFile,
				file.Summary.Label(),
				strconv.Itoa(o.LineNumber),
				o.ItemCode,
				o.NCM,
				o.CFOP,
				string(o.Status),
				o.SkipReason,
				o.ItemValue.StringFixed(2),
				o.OriginalBasisPIS.StringFixed(2),
				o.OriginalAmountPIS.StringFixed(2),
				o.OriginalBasisCOFINS.StringFixed(2),
				o.OriginalAmountCOFINS.StringFixed(2),
				o.Markup.String(),
				o.TaxRate.String(),
				o.ICMSSTBase.StringFixed(2),
				o.ICMSSTValue.StringFixed(2),
				o.NewBasisPIS.StringFixed(2),
				o.NewAmountPIS.StringFixed(2),
				o.NewBasisCOFINS.StringFixed(2),
				o.NewAmountCOFINS.StringFixed(2),
				o.CreditPIS.StringFixed(2),
				o.CreditCOFINS.StringFixed(2),
				o.TotalCredit.StringFixed(2),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write outcome record: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(result *recovery.BatchResult, writer io.Writer) {
	fmt.Fprintf(writer, "%-16s %9s %10s %14s %14s %14s %8s\n",
		"Period", "Records", "Calculated", "PIS Credit", "COFINS Credit", "Total Credit", "Savings")

	for _, s := range result.Summaries() {
		fmt.Fprintf(writer, "%-16s %9d %10d %14s %14s %14s %7s%%\n",
			truncate(s.Label(), 16),
			s.TotalRecords,
			s.Calculated,
			formatMoney(s.PISCredit.StringFixed(2)),
			formatMoney(s.COFINSCredit.StringFixed(2)),
			formatMoney(s.TotalCredit.StringFixed(2)),
			s.SavingsPercentage.StringFixed(2))
	}
}

func (rg *ReportGenerator) printTotals(totals *recovery.BatchTotals, writer io.Writer) {
	if totals == nil {
		fmt.Fprintf(writer, "No ledgers processed\n")
		return
	}

	fmt.Fprintf(writer, "Files:            %d\n", totals.Files)
	fmt.Fprintf(writer, "Records:          %d\n", totals.TotalRecords)
	fmt.Fprintf(writer, "Calculated:       %d (%s%% utilization)\n", totals.Calculated, totals.UtilizationRate.StringFixed(1))
	fmt.Fprintf(writer, "Skipped:          %d\n", totals.Skipped)
	fmt.Fprintf(writer, "PIS Credit:       R$ %s\n", formatMoney(totals.PISCredit.StringFixed(2)))
	fmt.Fprintf(writer, "COFINS Credit:    R$ %s\n", formatMoney(totals.COFINSCredit.StringFixed(2)))
	fmt.Fprintf(writer, "Total Credit:     R$ %s\n", formatMoney(totals.TotalCredit.StringFixed(2)))
	fmt.Fprintf(writer, "Savings:          %s%%\n", totals.SavingsPercentage.StringFixed(2))
}

func (rg *ReportGenerator) printSkipReasons(reasons map[string]int, writer io.Writer) {
	type reasonCount struct {
		reason string
		count  int
	}

	counts := make([]reasonCount, 0, len(reasons))
	for reason, count := range reasons {
		counts = append(counts, reasonCount{reason, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].reason < counts[j].reason
	})

	for _, c := range counts {
		fmt.Fprintf(writer, "  %-40s %d\n", c.reason, c.count)
	}
}

func (rg *ReportGenerator) printErrors(result *recovery.BatchResult, writer io.Writer) {
	fmt.Fprintf(writer, "%s\n", result.Errors.Error())

	for i, err := range result.Errors.Errors {
		if rg.config.MaxErrors > 0 && i >= rg.config.MaxErrors {
			fmt.Fprintf(writer, "  ... and %d more\n", len(result.Errors.Errors)-i)
			break
		}
		fmt.Fprintf(writer, "  %d. [%s] %s\n", i+1, err.Code, err.Message)
	}
}

// Helper methods

func (rg *ReportGenerator) selectOutcomes(outcomes []*models.CalculationOutcome) []*models.CalculationOutcome {
	if rg.config.IncludeSkipped {
		return outcomes
	}

	selected := make([]*models.CalculationOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.IsCalculated() {
			selected = append(selected, o)
		}
	}
	return selected
}

func outputFiles(result *recovery.BatchResult) []string {
	var outputs []string
	for _, file := range result.Files {
		if file.OutputFile != "" {
			outputs = append(outputs, file.OutputFile)
		}
	}
	return outputs
}

// formatMoney groups thousands with '.' and uses ',' for decimals: 1234.50 -> 1.234,50
func formatMoney(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	if fracPart == "" {
		return sign + b.String()
	}
	return sign + b.String() + "," + fracPart
}

// formatCNPJ renders a 14-digit tax id as 12.345.678/0001-90
func formatCNPJ(taxID string) string {
	if len(taxID) != 14 {
		return taxID
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", taxID[:2], taxID[2:5], taxID[5:8], taxID[8:12], taxID[12:])
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
