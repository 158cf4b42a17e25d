package models

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// plainNumber is an optional sign, digits and at most one separator.
// Exponent and hex forms are rejected so no value can carry a huge scale.
var plainNumber = regexp.MustCompile(`^[+-]?(\d+[.,]?\d*|[.,]\d+)$`)

// IsPlainNumber reports whether s is a plain decimal literal
func IsPlainNumber(s string) bool {
	return plainNumber.MatchString(s)
}

// ParseLocaleDecimal converts ledger numeric text ("1234,56") to a decimal.
// Blank or malformed text yields zero.
func ParseLocaleDecimal(s string) decimal.Decimal {
	d, _ := ParseDecimalField(s)
	return d
}

// ParseDecimalField is ParseLocaleDecimal that also reports whether a
// non-blank value was malformed and replaced by zero.
func ParseDecimalField(s string) (value decimal.Decimal, defaulted bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	if !IsPlainNumber(s) {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, true
	}
	return d, false
}

// ParsePercentage reads reference-table cells such as "40", "40,5" or "40.5%".
// ok is false for blank or unparsable cells.
func ParsePercentage(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)
	if !IsPlainNumber(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// RoundMoney rounds to two places, half away from zero
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatLedgerDecimal renders a value with two decimals and a comma separator
func FormatLedgerDecimal(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// Percent converts a percentage to its fraction
func Percent(d decimal.Decimal) decimal.Decimal {
	return d.Shift(-2)
}
