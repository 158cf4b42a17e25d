package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"pis-cofins-recovery-service/internal/calculator"
	"pis-cofins-recovery-service/internal/parsers"
	"pis-cofins-recovery-service/internal/recovery"
	"pis-cofins-recovery-service/pkg/errors"
)

// Flags for the inspect command
var (
	inspectLedger    string
	inspectEncoding  string
	inspectReference string
	inspectSheet     string
)

// inspectCmd prints what the parser sees in a ledger without calculating anything
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print parser statistics for a ledger",
	Long: `Inspect parses one ledger and prints its header, resolved period, record
counts per tag and the numeric fields that were defaulted to zero.

With --reference it also reports how many eligible records resolve to an
NCM present in the reference table.

Examples:
  recovery inspect --ledger jan_2024.txt
  recovery inspect --ledger jan_2024.txt --reference base_st.xlsx`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFileExists(inspectLedger, "ledger file"); err != nil {
			return err
		}
		if inspectReference != "" {
			if err := validateFileExists(inspectReference, "reference table"); err != nil {
				return err
			}
		}
		if _, err := parsers.ParseEncoding(inspectEncoding); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", inspectEncoding, err)
		}
		return nil
	},
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectLedger, "ledger", "l", "", "path to the SPED ledger file (required)")
	inspectCmd.Flags().StringVarP(&inspectEncoding, "encoding", "e", "latin1", "ledger encoding: latin1, utf8")
	inspectCmd.Flags().StringVarP(&inspectReference, "reference", "r", "", "optional NCM reference table for coverage")
	inspectCmd.Flags().StringVar(&inspectSheet, "sheet", "", "reference workbook sheet (default: first sheet)")

	inspectCmd.MarkFlagRequired("ledger")
}

func runInspect(cmd *cobra.Command, args []string) error {
	enc, _ := parsers.ParseEncoding(inspectEncoding)

	content, err := parsers.ReadLedgerFile(inspectLedger, enc)
	if err != nil {
		return err
	}

	parser := parsers.NewLedgerParser()
	header, products, _ := parser.Load(content)
	period, source := recovery.ResolvePeriod(inspectLedger, header)
	stats := parser.Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ledger: %s\n", inspectLedger)
	if header != nil {
		fmt.Fprintf(out, "Company: %s\n", header.CompanyName)
		fmt.Fprintf(out, "Tax ID: %s\n", header.TaxID)
		fmt.Fprintf(out, "State: %s\n", header.UF)
	} else {
		fmt.Fprintf(out, "Header: not found\n")
	}
	fmt.Fprintf(out, "Period: %s (%s, from %s)\n", period.String(), period.MonthName(), source)
	fmt.Fprintf(out, "Products: %d distinct item codes\n", len(products))
	fmt.Fprintf(out, "Stats: %s\n", stats.String())

	writeTagCounts(out, stats.TagCounts)

	if len(stats.DefaultedSamples) > 0 {
		fmt.Fprintf(out, "\nDefaulted fields (first %d):\n", len(stats.DefaultedSamples))
		for _, sample := range stats.DefaultedSamples {
			fmt.Fprintf(out, "  %s\n", sample)
		}
	}

	if inspectReference == "" {
		return nil
	}

	referenceConfig := parsers.DefaultReferenceConfig()
	referenceConfig.Sheet = inspectSheet
	reference, err := parsers.LoadReferenceFile(inspectReference, referenceConfig)
	if err != nil {
		return err
	}

	eligible := calculator.DefaultConfig().EligibleSet()
	var candidates, withNCM, covered int
	for _, record := range parser.Transactions() {
		if !eligible[record.CFOP] {
			continue
		}
		candidates++
		ncm := parser.NCMForItem(record.ItemCode)
		if ncm == "" {
			continue
		}
		withNCM++
		if _, ok := reference.Lookup(ncm); ok {
			covered++
		}
	}

	fmt.Fprintf(out, "\nReference coverage (CFOP %s):\n", calculator.DefaultEligibleCFOP)
	fmt.Fprintf(out, "  Reference NCMs:   %d\n", reference.Len())
	fmt.Fprintf(out, "  Eligible records: %d\n", candidates)
	fmt.Fprintf(out, "  With NCM:         %d\n", withNCM)
	fmt.Fprintf(out, "  In reference:     %d\n", covered)

	return nil
}

func writeTagCounts(out io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Fprintf(out, "\nRecords by tag:\n")
	for _, tag := range tags {
		fmt.Fprintf(out, "  %-6s %d\n", tag, counts[tag])
	}
}
