package config

import (
	"fmt"
	"strings"

	"pis-cofins-recovery-service/internal/calculator"
	"pis-cofins-recovery-service/internal/parsers"
	"pis-cofins-recovery-service/internal/recovery"
	"pis-cofins-recovery-service/internal/reporter"
)

// CreateReferenceConfig creates the reference loader configuration.
// columns maps a target (ncm, markup, entry_rate, ...) to an exact header.
func CreateReferenceConfig(sheet string, columns map[string]string) (*parsers.ReferenceConfig, error) {
	config := parsers.DefaultReferenceConfig()
	config.Sheet = strings.TrimSpace(sheet)

	for target, header := range columns {
		config.ColumnAliases[strings.ToLower(strings.TrimSpace(target))] = strings.TrimSpace(header)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference config: %w", err)
	}
	return config, nil
}

// CreateCalculatorConfig creates a calculator configuration for the given
// CFOP codes. An empty list keeps the default (5405).
func CreateCalculatorConfig(cfops []string) *calculator.Config {
	config := calculator.DefaultConfig()

	var codes []string
	for _, code := range cfops {
		// viper hands back "5405,5403" unsplit when the value came from env
		for _, part := range strings.Split(code, ",") {
			if part = strings.TrimSpace(part); part != "" {
				codes = append(codes, part)
			}
		}
	}
	if len(codes) > 0 {
		config.EligibleCFOPs = codes
	}

	return config
}

// CreateServiceConfig creates the recovery service configuration
func CreateServiceConfig(cfops []string, workers int, encoding string) (*recovery.Config, error) {
	config := recovery.DefaultConfig()
	config.Calculator = CreateCalculatorConfig(cfops)

	enc, err := parsers.ParseEncoding(encoding)
	if err != nil {
		return nil, err
	}
	config.Encoding = enc

	if workers > 0 {
		config.Workers = workers
	}

	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, includeSkipped bool) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.IncludeSkipped = includeSkipped

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeOutcomes = true
	case "yaml":
		config.Format = reporter.FormatYAML
		config.IncludeOutcomes = true
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ';'
	default:
		config.Format = reporter.OutputFormat(format)
	}

	return config
}

// ValidateConfig validates that all required configurations are valid
func ValidateConfig(referenceConfig *parsers.ReferenceConfig, serviceConfig *recovery.Config, reportConfig *reporter.ReportConfig) error {
	if err := referenceConfig.Validate(); err != nil {
		return fmt.Errorf("invalid reference config: %w", err)
	}

	if err := serviceConfig.Validate(); err != nil {
		return fmt.Errorf("invalid service config: %w", err)
	}

	if err := reportConfig.Validate(); err != nil {
		return fmt.Errorf("invalid report config: %w", err)
	}

	return nil
}
