package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record type tags consumed from the ledger
const (
	TagHeader      = "0000"
	TagProduct     = "0200"
	TagTransaction = "C870"
)

// LedgerHeader carries the company and period metadata of the first 0000 record
type LedgerHeader struct {
	LayoutVersion    string `json:"layout_version"`
	BookkeepingType  string `json:"bookkeeping_type"`
	PeriodStart      string `json:"period_start"`
	PeriodEnd        string `json:"period_end"`
	CompanyName      string `json:"company_name"`
	TaxID            string `json:"tax_id"`
	UF               string `json:"uf"`
	MunicipalityCode string `json:"municipality_code"`
}

// PeriodStartDate parses the DDMMYYYY period start.
func (h *LedgerHeader) PeriodStartDate() (time.Time, bool) {
	if h == nil || len(h.PeriodStart) < 8 {
		return time.Time{}, false
	}
	t, err := time.Parse("02012006", h.PeriodStart[:8])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ProductReference is one 0200 record
type ProductReference struct {
	ItemCode    string              `json:"item_code"`
	Description string              `json:"description"`
	NCM         string              `json:"ncm"`
	ICMSRate    decimal.NullDecimal `json:"icms_rate"`
}

// TransactionRecord is one C870 record with its position in the ledger
type TransactionRecord struct {
	LineNumber   int             `json:"line_number"`
	ItemCode     string          `json:"item_code"`
	CFOP         string          `json:"cfop"`
	ItemValue    decimal.Decimal `json:"item_value"`
	Discount     decimal.Decimal `json:"discount"`
	CSTPIS       string          `json:"cst_pis"`
	BasisPIS     decimal.Decimal `json:"basis_pis"`
	RatePIS      decimal.Decimal `json:"rate_pis"`
	AmountPIS    decimal.Decimal `json:"amount_pis"`
	CSTCOFINS    string          `json:"cst_cofins"`
	BasisCOFINS  decimal.Decimal `json:"basis_cofins"`
	RateCOFINS   decimal.Decimal `json:"rate_cofins"`
	AmountCOFINS decimal.Decimal `json:"amount_cofins"`
	AccountCode  string          `json:"account_code"`
	RawLine      string          `json:"-"`
}

// String returns a short description used in log lines
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("C870{line: %d, item: %s, cfop: %s, basis_pis: %s, basis_cofins: %s}",
		r.LineNumber, r.ItemCode, r.CFOP, r.BasisPIS.String(), r.BasisCOFINS.String())
}

// DefaultTaxRate applies to reference rows without an entry rate
var DefaultTaxRate = decimal.NewFromInt(18)

// ReferenceEntry holds the ICMS-ST parameters of one NCM
type ReferenceEntry struct {
	NCM     string          `json:"ncm"`
	Markup  decimal.Decimal `json:"markup"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

// OutcomeStatus is the terminal state of a calculation
type OutcomeStatus string

const (
	StatusCalculated OutcomeStatus = "calculated"
	StatusSkipped    OutcomeStatus = "skipped"
)

// Skip reasons, in decision order
const (
	ReasonCFOPNotEligible = "CFOP not eligible"
	ReasonNCMNotFound     = "NCM not found"
	ReasonNoMarkup        = "NCM has no markup in reference table"
	ReasonMarkupNotPos    = "markup zero or negative"
)

// CalculationOutcome is the result of running one transaction through the calculator
type CalculationOutcome struct {
	LineNumber int    `json:"line_number" yaml:"line_number"`
	ItemCode   string `json:"item_code" yaml:"item_code"`
	NCM        string `json:"ncm" yaml:"ncm"`
	CFOP       string `json:"cfop" yaml:"cfop"`

	ItemValue            decimal.Decimal `json:"item_value" yaml:"item_value"`
	OriginalBasisPIS     decimal.Decimal `json:"original_basis_pis" yaml:"original_basis_pis"`
	OriginalAmountPIS    decimal.Decimal `json:"original_amount_pis" yaml:"original_amount_pis"`
	OriginalBasisCOFINS  decimal.Decimal `json:"original_basis_cofins" yaml:"original_basis_cofins"`
	OriginalAmountCOFINS decimal.Decimal `json:"original_amount_cofins" yaml:"original_amount_cofins"`

	Markup      decimal.Decimal `json:"markup" yaml:"markup"`
	TaxRate     decimal.Decimal `json:"tax_rate" yaml:"tax_rate"`
	ICMSSTBase  decimal.Decimal `json:"icms_st_base" yaml:"icms_st_base"`
	ICMSSTValue decimal.Decimal `json:"icms_st_value" yaml:"icms_st_value"`

	NewBasisPIS     decimal.Decimal `json:"new_basis_pis" yaml:"new_basis_pis"`
	NewAmountPIS    decimal.Decimal `json:"new_amount_pis" yaml:"new_amount_pis"`
	NewBasisCOFINS  decimal.Decimal `json:"new_basis_cofins" yaml:"new_basis_cofins"`
	NewAmountCOFINS decimal.Decimal `json:"new_amount_cofins" yaml:"new_amount_cofins"`

	CreditPIS    decimal.Decimal `json:"credit_pis" yaml:"credit_pis"`
	CreditCOFINS decimal.Decimal `json:"credit_cofins" yaml:"credit_cofins"`
	TotalCredit  decimal.Decimal `json:"total_credit" yaml:"total_credit"`

	Status     OutcomeStatus `json:"status" yaml:"status"`
	SkipReason string        `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
}

// IsCalculated reports whether the outcome carries recomputed values
func (o *CalculationOutcome) IsCalculated() bool {
	return o != nil && o.Status == StatusCalculated
}

// PeriodSummary rolls up the outcomes of one ledger file
type PeriodSummary struct {
	SourceFile string `json:"source_file" yaml:"source_file"`
	Month      string `json:"month" yaml:"month"`
	Year       string `json:"year" yaml:"year"`
	MonthName  string `json:"month_name" yaml:"month_name"`

	TotalRecords int `json:"total_records" yaml:"total_records"`
	Calculated   int `json:"calculated" yaml:"calculated"`
	Skipped      int `json:"skipped" yaml:"skipped"`

	PISOriginal    decimal.Decimal `json:"pis_original" yaml:"pis_original"`
	PISAdjusted    decimal.Decimal `json:"pis_adjusted" yaml:"pis_adjusted"`
	PISCredit      decimal.Decimal `json:"pis_credit" yaml:"pis_credit"`
	COFINSOriginal decimal.Decimal `json:"cofins_original" yaml:"cofins_original"`
	COFINSAdjusted decimal.Decimal `json:"cofins_adjusted" yaml:"cofins_adjusted"`
	COFINSCredit   decimal.Decimal `json:"cofins_credit" yaml:"cofins_credit"`
	TotalCredit    decimal.Decimal `json:"total_credit" yaml:"total_credit"`

	SavingsPercentage decimal.Decimal `json:"savings_percentage" yaml:"savings_percentage"`
	SkipReasons       map[string]int  `json:"skip_reasons,omitempty" yaml:"skip_reasons,omitempty"`
}

// Label renders the period as "Janeiro/2024"
func (s *PeriodSummary) Label() string {
	return fmt.Sprintf("%s/%s", s.MonthName, s.Year)
}

var monthNames = map[string]string{
	"01": "Janeiro", "02": "Fevereiro", "03": "Março",
	"04": "Abril", "05": "Maio", "06": "Junho",
	"07": "Julho", "08": "Agosto", "09": "Setembro",
	"10": "Outubro", "11": "Novembro", "12": "Dezembro",
}

// MonthName returns the Portuguese name of a two-digit month, or the input when unknown
func MonthName(month string) string {
	if name, ok := monthNames[month]; ok {
		return name
	}
	return month
}
