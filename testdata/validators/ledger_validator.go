package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"pis-cofins-recovery-service/internal/calculator"
	"pis-cofins-recovery-service/internal/models"
	"pis-cofins-recovery-service/internal/parsers"
)

// ValidationIssue is one discrepancy between an original and a corrected ledger
type ValidationIssue struct {
	Line    int
	Message string
}

// ValidationReport summarizes a correction check
type ValidationReport struct {
	Lines      int
	Unchanged  int
	Rewritten  int
	Calculated int
	Issues     []ValidationIssue
}

// Valid reports whether no issue was found
func (r *ValidationReport) Valid() bool {
	return len(r.Issues) == 0
}

func (r *ValidationReport) addIssue(line int, format string, args ...interface{}) {
	r.Issues = append(r.Issues, ValidationIssue{Line: line, Message: fmt.Sprintf(format, args...)})
}

// rewritable lists the C870 field positions a correction may touch
var rewritable = map[int]bool{6: true, 8: true, 10: true, 12: true}

func main() {
	var (
		original     = flag.String("original", "", "Original ledger file (required)")
		corrected    = flag.String("corrected", "", "Corrected ledger file (required)")
		reference    = flag.String("reference", "", "Reference table used for the correction (required)")
		cfops        = flag.String("cfops", "5405", "Comma-separated eligible CFOPs")
		encodingName = flag.String("encoding", "latin1", "Ledger encoding: latin1, utf8")
		verbose      = flag.Bool("verbose", false, "List every issue")
	)
	flag.Parse()

	if *original == "" || *corrected == "" || *reference == "" {
		flag.Usage()
		os.Exit(2)
	}

	enc, err := parsers.ParseEncoding(*encodingName)
	if err != nil {
		log.Fatalf("Invalid encoding: %v", err)
	}

	originalText, err := parsers.ReadLedgerFile(*original, enc)
	if err != nil {
		log.Fatalf("Failed to read original ledger: %v", err)
	}
	correctedText, err := parsers.ReadLedgerFile(*corrected, enc)
	if err != nil {
		log.Fatalf("Failed to read corrected ledger: %v", err)
	}

	table, err := parsers.LoadReferenceFile(*reference, nil)
	if err != nil {
		log.Fatalf("Failed to load reference table: %v", err)
	}

	calc, err := calculator.New(table, &calculator.Config{EligibleCFOPs: strings.Split(*cfops, ",")})
	if err != nil {
		log.Fatalf("Invalid calculator configuration: %v", err)
	}

	report := ValidateCorrection(originalText, correctedText, calc)

	fmt.Println("Ledger Correction Validator")
	fmt.Println("===========================")
	fmt.Printf("Original:   %s\n", *original)
	fmt.Printf("Corrected:  %s\n", *corrected)
	fmt.Printf("Lines:      %d\n", report.Lines)
	fmt.Printf("Unchanged:  %d\n", report.Unchanged)
	fmt.Printf("Rewritten:  %d\n", report.Rewritten)
	fmt.Printf("Calculated: %d\n", report.Calculated)
	fmt.Printf("Issues:     %d\n", len(report.Issues))

	if len(report.Issues) > 0 {
		limit := len(report.Issues)
		if !*verbose && limit > 10 {
			limit = 10
		}
		fmt.Println()
		for _, issue := range report.Issues[:limit] {
			fmt.Printf("  line %d: %s\n", issue.Line, issue.Message)
		}
		if limit < len(report.Issues) {
			fmt.Printf("  ... and %d more (use -verbose)\n", len(report.Issues)-limit)
		}
		os.Exit(1)
	}

	fmt.Println("\n✅ Corrected ledger is consistent with the original")
}

// ValidateCorrection checks that corrected differs from original only in
// the four rewritable fields of calculated C870 lines, and that those
// fields hold the values the calculator produces.
func ValidateCorrection(original, corrected string, calc *calculator.Calculator) *ValidationReport {
	parser := parsers.NewLedgerParser()
	parser.Load(original)
	originalLines := parser.Lines()
	correctedLines := strings.Split(corrected, "\n")

	report := &ValidationReport{Lines: len(originalLines)}
	if len(originalLines) != len(correctedLines) {
		report.addIssue(0, "line count changed from %d to %d", len(originalLines), len(correctedLines))
		return report
	}

	outcomes := make(map[int]*models.CalculationOutcome)
	for _, outcome := range calc.CalculateAll(parser.Transactions(), parser.NCMForItem) {
		if outcome.IsCalculated() {
			outcomes[outcome.LineNumber] = outcome
			report.Calculated++
		}
	}

	for i, before := range originalLines {
		lineNumber := i + 1
		after := correctedLines[i]
		outcome := outcomes[lineNumber]

		if before == after {
			report.Unchanged++
			if outcome != nil && !outcomeMatches(after, outcome) {
				report.addIssue(lineNumber, "calculated record was not rewritten")
			}
			continue
		}

		report.Rewritten++
		if outcome == nil {
			report.addIssue(lineNumber, "line changed but no calculation applies")
			continue
		}

		beforeFields := strings.Split(strings.Trim(strings.TrimSpace(before), "|"), "|")
		afterFields := strings.Split(strings.Trim(strings.TrimSpace(after), "|"), "|")
		if len(beforeFields) != len(afterFields) {
			report.addIssue(lineNumber, "field count changed from %d to %d", len(beforeFields), len(afterFields))
			continue
		}
		for j := range beforeFields {
			if beforeFields[j] != afterFields[j] && !rewritable[j] {
				report.addIssue(lineNumber, "field %d changed from %q to %q", j, beforeFields[j], afterFields[j])
			}
		}

		if !outcomeMatches(after, outcome) {
			report.addIssue(lineNumber, "rewritten values do not match the recalculation")
		}
	}

	return report
}

func outcomeMatches(line string, outcome *models.CalculationOutcome) bool {
	fields := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
	if len(fields) < 13 {
		return false
	}
	return fields[6] == models.FormatLedgerDecimal(outcome.NewBasisPIS) &&
		fields[8] == models.FormatLedgerDecimal(outcome.NewAmountPIS) &&
		fields[10] == models.FormatLedgerDecimal(outcome.NewBasisCOFINS) &&
		fields[12] == models.FormatLedgerDecimal(outcome.NewAmountCOFINS)
}
