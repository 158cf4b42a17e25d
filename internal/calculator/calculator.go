package calculator

import (
	"github.com/shopspring/decimal"

	"pis-cofins-recovery-service/internal/models"
)

// ReferenceLookup resolves an NCM to its ICMS-ST parameters
type ReferenceLookup interface {
	Lookup(ncm string) (*models.ReferenceEntry, bool)
}

// Calculator applies the ICMS-ST exclusion to transaction records.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	reference ReferenceLookup
	eligible  map[string]bool
}

// New creates a calculator over a reference lookup
func New(reference ReferenceLookup, config *Config) (*Calculator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Calculator{
		reference: reference,
		eligible:  config.EligibleSet(),
	}, nil
}

// Calculate maps a record and its resolved NCM ("" when unresolved) to an outcome
func (c *Calculator) Calculate(record *models.TransactionRecord, ncm string) *models.CalculationOutcome {
	outcome := skipped(record, ncm)

	if !c.eligible[record.CFOP] {
		outcome.SkipReason = models.ReasonCFOPNotEligible
		return outcome
	}

	if ncm == "" {
		outcome.SkipReason = models.ReasonNCMNotFound
		return outcome
	}

	var entry *models.ReferenceEntry
	if c.reference != nil {
		entry, _ = c.reference.Lookup(ncm)
	}
	if entry == nil {
		outcome.SkipReason = models.ReasonNoMarkup
		return outcome
	}

	if !entry.Markup.IsPositive() {
		outcome.SkipReason = models.ReasonMarkupNotPos
		return outcome
	}

	return compute(record, ncm, entry)
}

// CalculateAll runs every record through Calculate, resolving NCMs with resolve
func (c *Calculator) CalculateAll(records []*models.TransactionRecord, resolve func(itemCode string) string) []*models.CalculationOutcome {
	outcomes := make([]*models.CalculationOutcome, 0, len(records))
	for _, record := range records {
		outcomes = append(outcomes, c.Calculate(record, resolve(record.ItemCode)))
	}
	return outcomes
}

// skipped builds an outcome whose new values equal the originals
func skipped(record *models.TransactionRecord, ncm string) *models.CalculationOutcome {
	return &models.CalculationOutcome{
		LineNumber:           record.LineNumber,
		ItemCode:             record.ItemCode,
		NCM:                  ncm,
		CFOP:                 record.CFOP,
		ItemValue:            record.ItemValue,
		OriginalBasisPIS:     record.BasisPIS,
		OriginalAmountPIS:    record.AmountPIS,
		OriginalBasisCOFINS:  record.BasisCOFINS,
		OriginalAmountCOFINS: record.AmountCOFINS,
		Markup:               decimal.Zero,
		TaxRate:              decimal.Zero,
		ICMSSTBase:           decimal.Zero,
		ICMSSTValue:          decimal.Zero,
		NewBasisPIS:          record.BasisPIS,
		NewAmountPIS:         record.AmountPIS,
		NewBasisCOFINS:       record.BasisCOFINS,
		NewAmountCOFINS:      record.AmountCOFINS,
		CreditPIS:            decimal.Zero,
		CreditCOFINS:         decimal.Zero,
		TotalCredit:          decimal.Zero,
		Status:               models.StatusSkipped,
	}
}

func compute(record *models.TransactionRecord, ncm string, entry *models.ReferenceEntry) *models.CalculationOutcome {
	markup := models.Percent(entry.Markup)
	rate := models.Percent(entry.TaxRate)

	exclusionPIS := record.BasisPIS.Mul(markup).Mul(rate)
	exclusionCOFINS := record.BasisCOFINS.Mul(markup).Mul(rate)

	newBasisPIS := clampZero(models.RoundMoney(record.BasisPIS.Sub(exclusionPIS)))
	newBasisCOFINS := clampZero(models.RoundMoney(record.BasisCOFINS.Sub(exclusionCOFINS)))

	newAmountPIS := models.RoundMoney(newBasisPIS.Mul(models.Percent(record.RatePIS)))
	newAmountCOFINS := models.RoundMoney(newBasisCOFINS.Mul(models.Percent(record.RateCOFINS)))

	creditPIS := models.RoundMoney(record.AmountPIS.Sub(newAmountPIS))
	creditCOFINS := models.RoundMoney(record.AmountCOFINS.Sub(newAmountCOFINS))

	return &models.CalculationOutcome{
		LineNumber:           record.LineNumber,
		ItemCode:             record.ItemCode,
		NCM:                  ncm,
		CFOP:                 record.CFOP,
		ItemValue:            record.ItemValue,
		OriginalBasisPIS:     record.BasisPIS,
		OriginalAmountPIS:    record.AmountPIS,
		OriginalBasisCOFINS:  record.BasisCOFINS,
		OriginalAmountCOFINS: record.AmountCOFINS,
		Markup:               entry.Markup,
		TaxRate:              entry.TaxRate,
		ICMSSTBase:           models.RoundMoney(record.BasisPIS.Mul(markup)),
		ICMSSTValue:          models.RoundMoney(exclusionPIS),
		NewBasisPIS:          newBasisPIS,
		NewAmountPIS:         newAmountPIS,
		NewBasisCOFINS:       newBasisCOFINS,
		NewAmountCOFINS:      newAmountCOFINS,
		CreditPIS:            creditPIS,
		CreditCOFINS:         creditCOFINS,
		TotalCredit:          creditPIS.Add(creditCOFINS),
		Status:               models.StatusCalculated,
	}
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
