// Package rewriter produces the corrected ledger text.
//
// Only C870 lines whose outcome was calculated change, and on those only the
// PIS basis, PIS amount, COFINS basis and COFINS amount fields are replaced.
// Every other byte of the ledger is reproduced as read.
package rewriter

import (
	"strings"
	"unicode"

	"pis-cofins-recovery-service/internal/models"
)

// Field positions replaced on calculated C870 records
const (
	fieldBasisPIS     = 6
	fieldAmountPIS    = 8
	fieldBasisCOFINS  = 10
	fieldAmountCOFINS = 12

	minFields = fieldAmountCOFINS + 1
)

// Generate rebuilds the ledger from its original lines. outcomesByLine is
// keyed by 1-based line number.
func Generate(lines []string, outcomesByLine map[int]*models.CalculationOutcome) string {
	out := make([]string, len(lines))
	for i, line := range lines {
		outcome := outcomesByLine[i+1]
		if !outcome.IsCalculated() {
			out[i] = line
			continue
		}
		out[i] = RewriteLine(line, outcome)
	}
	return strings.Join(out, "\n")
}

// IndexByLine keys outcomes by their line number
func IndexByLine(outcomes []*models.CalculationOutcome) map[int]*models.CalculationOutcome {
	index := make(map[int]*models.CalculationOutcome, len(outcomes))
	for _, outcome := range outcomes {
		index[outcome.LineNumber] = outcome
	}
	return index
}

// RewriteLine replaces the four monetary fields of one record. Lines with
// fewer than 13 fields are returned unchanged.
func RewriteLine(line string, outcome *models.CalculationOutcome) string {
	core := strings.TrimFunc(line, unicode.IsSpace)
	if core == "" {
		return line
	}
	start := strings.Index(line, core)
	prefix, suffix := line[:start], line[start+len(core):]

	open, close := "", ""
	if strings.HasPrefix(core, "|") {
		open, core = "|", core[1:]
	}
	if strings.HasSuffix(core, "|") {
		close, core = "|", core[:len(core)-1]
	}

	fields := strings.Split(core, "|")
	if len(fields) < minFields {
		return line
	}

	fields[fieldBasisPIS] = models.FormatLedgerDecimal(outcome.NewBasisPIS)
	fields[fieldAmountPIS] = models.FormatLedgerDecimal(outcome.NewAmountPIS)
	fields[fieldBasisCOFINS] = models.FormatLedgerDecimal(outcome.NewBasisCOFINS)
	fields[fieldAmountCOFINS] = models.FormatLedgerDecimal(outcome.NewAmountCOFINS)

	var b strings.Builder
	b.Grow(len(line))
	b.WriteString(prefix)
	b.WriteString(open)
	b.WriteString(strings.Join(fields, "|"))
	b.WriteString(close)
	b.WriteString(suffix)
	return b.String()
}
