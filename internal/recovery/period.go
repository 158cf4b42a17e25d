package recovery

import (
	"fmt"
	"path/filepath"
	"regexp"

	"pis-cofins-recovery-service/internal/models"
)

// Period identifies the fiscal month of one ledger
type Period struct {
	Month string `json:"month" yaml:"month"`
	Year  string `json:"year" yaml:"year"`
}

// UnknownPeriod is used when neither the header nor the filename carries a period
var UnknownPeriod = Period{Month: "00", Year: "0000"}

// PeriodSource tells where a period was resolved from
type PeriodSource string

const (
	PeriodFromHeader   PeriodSource = "header"
	PeriodFromFilename PeriodSource = "filename"
	PeriodUnknown      PeriodSource = "unknown"
)

var filenamePeriod = regexp.MustCompile(`(\d{2})[-_]?(\d{4})`)

// ResolvePeriod picks the period from the header start date, then from the
// first MMYYYY pattern in the file name, then falls back to 00/0000.
func ResolvePeriod(filename string, header *models.LedgerHeader) (Period, PeriodSource) {
	if start, ok := header.PeriodStartDate(); ok {
		return Period{
			Month: fmt.Sprintf("%02d", int(start.Month())),
			Year:  fmt.Sprintf("%04d", start.Year()),
		}, PeriodFromHeader
	}

	if m := filenamePeriod.FindStringSubmatch(filepath.Base(filename)); m != nil {
		return Period{Month: m[1], Year: m[2]}, PeriodFromFilename
	}

	return UnknownPeriod, PeriodUnknown
}

// MonthName returns the Portuguese month name
func (p Period) MonthName() string {
	return models.MonthName(p.Month)
}

// String renders the period as MM/YYYY
func (p Period) String() string {
	return p.Month + "/" + p.Year
}

// Less orders periods chronologically
func (p Period) Less(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// OutputFileName is the corrected ledger name for the period
func (p Period) OutputFileName() string {
	return fmt.Sprintf("SPED_RETIFICADO_%s_%s.txt", p.Month, p.Year)
}
