package recovery

import (
	"github.com/shopspring/decimal"

	"pis-cofins-recovery-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Summarize rolls up one file's outcomes for period. Amounts are summed over
// calculated outcomes only; skipped outcomes count towards Skipped and
// SkipReasons. The summary is complete on return.
func Summarize(sourceFile string, period Period, outcomes []*models.CalculationOutcome) *models.PeriodSummary {
	summary := &models.PeriodSummary{
		SourceFile:   sourceFile,
		Month:        period.Month,
		Year:         period.Year,
		MonthName:    period.MonthName(),
		TotalRecords: len(outcomes),
		SkipReasons:  make(map[string]int),
	}

	for _, outcome := range outcomes {
		if !outcome.IsCalculated() {
			summary.Skipped++
			summary.SkipReasons[outcome.SkipReason]++
			continue
		}

		summary.Calculated++
		summary.PISOriginal = summary.PISOriginal.Add(outcome.OriginalAmountPIS)
		summary.PISAdjusted = summary.PISAdjusted.Add(outcome.NewAmountPIS)
		summary.COFINSOriginal = summary.COFINSOriginal.Add(outcome.OriginalAmountCOFINS)
		summary.COFINSAdjusted = summary.COFINSAdjusted.Add(outcome.NewAmountCOFINS)
	}

	summary.PISCredit = summary.PISOriginal.Sub(summary.PISAdjusted)
	summary.COFINSCredit = summary.COFINSOriginal.Sub(summary.COFINSAdjusted)
	summary.TotalCredit = summary.PISCredit.Add(summary.COFINSCredit)
	summary.SavingsPercentage = SavingsPercentage(summary.TotalCredit, summary.PISOriginal.Add(summary.COFINSOriginal))

	return summary
}

// SavingsPercentage is credit / original × 100 rounded to two places, or zero
// when the original total is not positive.
func SavingsPercentage(credit, original decimal.Decimal) decimal.Decimal {
	if !original.IsPositive() {
		return decimal.Zero
	}
	return models.RoundMoney(credit.Div(original).Mul(hundred))
}

// BatchTotals accumulates the summaries of every processed file
type BatchTotals struct {
	Files        int `json:"files" yaml:"files"`
	TotalRecords int `json:"total_records" yaml:"total_records"`
	Calculated   int `json:"calculated" yaml:"calculated"`
	Skipped      int `json:"skipped" yaml:"skipped"`

	PISOriginal    decimal.Decimal `json:"pis_original" yaml:"pis_original"`
	PISCredit      decimal.Decimal `json:"pis_credit" yaml:"pis_credit"`
	COFINSOriginal decimal.Decimal `json:"cofins_original" yaml:"cofins_original"`
	COFINSCredit   decimal.Decimal `json:"cofins_credit" yaml:"cofins_credit"`
	TotalCredit    decimal.Decimal `json:"total_credit" yaml:"total_credit"`

	SavingsPercentage decimal.Decimal `json:"savings_percentage" yaml:"savings_percentage"`
	UtilizationRate   decimal.Decimal `json:"utilization_rate" yaml:"utilization_rate"`
	SkipReasons       map[string]int  `json:"skip_reasons,omitempty" yaml:"skip_reasons,omitempty"`
}

// Totalize sums period summaries into batch totals
func Totalize(summaries []*models.PeriodSummary) *BatchTotals {
	totals := &BatchTotals{SkipReasons: make(map[string]int)}

	for _, s := range summaries {
		totals.Files++
		totals.TotalRecords += s.TotalRecords
		totals.Calculated += s.Calculated
		totals.Skipped += s.Skipped
		totals.PISOriginal = totals.PISOriginal.Add(s.PISOriginal)
		totals.PISCredit = totals.PISCredit.Add(s.PISCredit)
		totals.COFINSOriginal = totals.COFINSOriginal.Add(s.COFINSOriginal)
		totals.COFINSCredit = totals.COFINSCredit.Add(s.COFINSCredit)
		totals.TotalCredit = totals.TotalCredit.Add(s.TotalCredit)
		for reason, count := range s.SkipReasons {
			totals.SkipReasons[reason] += count
		}
	}

	totals.SavingsPercentage = SavingsPercentage(totals.TotalCredit, totals.PISOriginal.Add(totals.COFINSOriginal))
	if totals.TotalRecords > 0 {
		totals.UtilizationRate = decimal.NewFromInt(int64(totals.Calculated)).
			Div(decimal.NewFromInt(int64(totals.TotalRecords))).
			Mul(hundred).
			Round(1)
	}

	return totals
}
