package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pis-cofins-recovery-service/cmd/recovery/config"
	"pis-cofins-recovery-service/internal/parsers"
	"pis-cofins-recovery-service/internal/recovery"
	"pis-cofins-recovery-service/internal/reporter"
	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// Flags for the process command
var (
	ledgerFiles    []string
	referenceFile  string
	cfops          []string
	outputDir      string
	outputFormat   string
	outputFile     string
	workers        int
	encoding       string
	sheet          string
	includeSkipped bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Recompute PIS/COFINS without ICMS-ST and write corrected ledgers",
	Long: `Process reads one or more SPED Contribuições ledgers, removes the ICMS-ST
share from the PIS and COFINS bases of eligible C870 items using the markup
and entry rate of each NCM in the reference table, and reports the credit
recovered per period.

This command requires:
- One or more ledger files (pipe-delimited text, latin-1 by default)
- A reference table (.xlsx, .xlsm or .csv) with NCM and markup columns

Examples:
  # Summary on the terminal
  recovery process --ledgers jan_2024.txt --reference base_st.xlsx

  # Several months, corrected ledgers written to out/
  recovery process --ledgers jan_2024.txt,feb_2024.txt,mar_2024.txt \
    --reference base_st.xlsx --output-dir out

  # More eligible CFOPs and a CSV detail report
  recovery process --ledgers sped_03_2024.txt --reference base.csv \
    --cfops 5405,5403 --output-format csv --output-file detail.csv --include-skipped`,

	PreRunE: validateProcessFlags,
	RunE:    runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	// Required flags
	processCmd.Flags().StringSliceVarP(&ledgerFiles, "ledgers", "l", []string{}, "comma-separated paths to SPED ledger files (required)")
	processCmd.Flags().StringVarP(&referenceFile, "reference", "r", "", "path to the NCM reference table (required)")

	// Calculation flags
	processCmd.Flags().StringSliceVar(&cfops, "cfops", []string{"5405"}, "eligible CFOP codes")
	processCmd.Flags().StringVar(&sheet, "sheet", "", "reference workbook sheet (default: first sheet)")
	processCmd.Flags().StringVarP(&encoding, "encoding", "e", "latin1", "ledger encoding: latin1, utf8")
	processCmd.Flags().IntVarP(&workers, "workers", "w", 0, "files processed in parallel (default: number of CPUs)")

	// Output flags
	processCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "directory for corrected ledgers (default: none written)")
	processCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "report format: console, json, yaml, csv")
	processCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "report file path (default: stdout)")
	processCmd.Flags().BoolVar(&includeSkipped, "include-skipped", false, "include skipped records in detailed reports")

	// Bind flags to viper
	viper.BindPFlag("ledgers", processCmd.Flags().Lookup("ledgers"))
	viper.BindPFlag("reference", processCmd.Flags().Lookup("reference"))
	viper.BindPFlag("cfops", processCmd.Flags().Lookup("cfops"))
	viper.BindPFlag("sheet", processCmd.Flags().Lookup("sheet"))
	viper.BindPFlag("encoding", processCmd.Flags().Lookup("encoding"))
	viper.BindPFlag("workers", processCmd.Flags().Lookup("workers"))
	viper.BindPFlag("output-dir", processCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("output-format", processCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", processCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("include-skipped", processCmd.Flags().Lookup("include-skipped"))
}

func validateProcessFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and environment)
	ledgerFiles = splitList(viper.GetStringSlice("ledgers"))
	referenceFile = viper.GetString("reference")
	cfops = viper.GetStringSlice("cfops")
	sheet = viper.GetString("sheet")
	encoding = viper.GetString("encoding")
	workers = viper.GetInt("workers")
	outputDir = viper.GetString("output-dir")
	outputFormat = strings.ToLower(viper.GetString("output-format"))
	outputFile = viper.GetString("output-file")
	includeSkipped = viper.GetBool("include-skipped")

	// Validate required flags
	if len(ledgerFiles) == 0 {
		return errors.ConfigurationError(errors.CodeMissingConfig, "ledgers", nil,
			fmt.Errorf("at least one ledger file is required")).
			WithSuggestion("Pass ledger files with --ledgers a.txt,b.txt")
	}
	if referenceFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "reference", nil,
			fmt.Errorf("reference table is required")).
			WithSuggestion("Pass the NCM table with --reference base.xlsx")
	}

	// Validate file existence
	if err := validateFileExists(referenceFile, "reference table"); err != nil {
		return err
	}
	for i, ledger := range ledgerFiles {
		if err := validateFileExists(ledger, fmt.Sprintf("ledger file %d", i+1)); err != nil {
			return err
		}
	}

	// Validate output format
	validFormats := map[string]bool{"console": true, "json": true, "yaml": true, "csv": true}
	if !validFormats[outputFormat] {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat,
			fmt.Errorf("invalid output format '%s'. Valid formats: console, json, yaml, csv", outputFormat))
	}

	if workers < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "workers", workers,
			fmt.Errorf("workers cannot be negative"))
	}

	if _, err := parsers.ParseEncoding(encoding); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", encoding, err)
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeDirectoryError, dir, err)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, description, nil,
			fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeFileNotFound, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}
	file.Close()

	return nil
}

// splitList flattens comma-joined entries; environment variables reach
// viper as a single string.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.GetGlobalLogger().WithComponent("cli")
	log.WithFields(logger.Fields{
		"ledgers":       len(ledgerFiles),
		"reference":     referenceFile,
		"cfops":         strings.Join(cfops, ","),
		"output_format": outputFormat,
		"output_dir":    outputDir,
	}).Debug("Starting credit recovery")

	// Create configurations
	referenceConfig, err := config.CreateReferenceConfig(sheet, viper.GetStringMapString("columns"))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "columns", viper.GetStringMapString("columns"), err)
	}

	serviceConfig, err := config.CreateServiceConfig(cfops, workers, encoding)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", encoding, err)
	}

	reportConfig := config.CreateReportConfig(outputFormat, includeSkipped)

	if err := config.ValidateConfig(referenceConfig, serviceConfig, reportConfig); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "configuration", nil, err)
	}

	// Load reference table
	reference, err := parsers.LoadReferenceFile(referenceFile, referenceConfig)
	if err != nil {
		return err
	}

	service, err := recovery.NewService(reference, serviceConfig)
	if err != nil {
		return err
	}

	result, batchErr := service.ProcessBatch(ctx, &recovery.BatchRequest{
		LedgerFiles: ledgerFiles,
		OutputDir:   outputDir,
	})
	if result == nil {
		return batchErr
	}

	// Generate report
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if outputFile != "" {
		written, err := generator.WriteReportFile(result, outputFile)
		if err != nil {
			return err
		}
		if written != outputFile {
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to backup location: %s\n", written)
		}
	} else if err := generator.GenerateReportSafely(result, cmd.OutOrStdout()); err != nil {
		return err
	}

	if batchErr != nil {
		return batchErr
	}

	if result.HasErrors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nWarning: %d of %d ledger(s) could not be processed; see the errors section of the report.\n",
			result.Errors.Total, len(ledgerFiles))
	}

	// Show completion message
	if viper.GetBool("verbose") {
		totals := result.Totals
		fmt.Fprintf(cmd.ErrOrStderr(), "\nCredit recovery completed.\n")
		fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d ledger(s), %d records, %d recalculated.\n",
			totals.Files, totals.TotalRecords, totals.Calculated)
		fmt.Fprintf(cmd.ErrOrStderr(), "Total credit: %s (PIS %s, COFINS %s).\n",
			totals.TotalCredit.StringFixed(2), totals.PISCredit.StringFixed(2), totals.COFINSCredit.StringFixed(2))
		for _, file := range result.Files {
			if file.OutputFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Corrected ledger: %s\n", file.OutputFile)
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Processing time: %v\n", result.Duration)
	}

	return nil
}
