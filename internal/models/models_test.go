package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalField(t *testing.T) {
	tests := []struct {
		input         string
		expected      string
		wantDefaulted bool
	}{
		{"1000,00", "1000", false},
		{"1,65", "1.65", false},
		{"  7,6  ", "7.6", false},
		{"", "0", false},
		{"   ", "0", false},
		{"-12,5", "-12.5", false},
		{"1.234,56", "0", true},
		{"abc", "0", true},
		{"NaN", "0", true},
		{"12,3x", "0", true},
		{"1e5", "0", true},
		{"1E-3", "0", true},
		{"0x10", "0", true},
		{"1e99999999", "0", true},
		{"+3,5", "3.5", false},
		{",5", "0.5", false},
		{"5,", "5", false},
		{"-", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, defaulted := ParseDecimalField(tt.input)
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("ParseDecimalField(%q) = %s, want %s", tt.input, got, tt.expected)
			}
			if defaulted != tt.wantDefaulted {
				t.Errorf("ParseDecimalField(%q) defaulted = %v, want %v", tt.input, defaulted, tt.wantDefaulted)
			}
			if !ParseLocaleDecimal(tt.input).Equal(got) {
				t.Errorf("ParseLocaleDecimal(%q) disagrees with ParseDecimalField", tt.input)
			}
		})
	}
}

func TestParsePercentage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"40", "40", true},
		{"40,5", "40.5", true},
		{"71.78%", "71.78", true},
		{" 12 % ", "12", true},
		{"", "0", false},
		{"nan", "0", false},
		{"n/a", "0", false},
		{"4e1", "0", false},
		{"1E+400000000", "0", false},
		{"0x28", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePercentage(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParsePercentage(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("ParsePercentage(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRoundMoneyHalfUp(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"15.312", "15.31"},
		{"70.528", "70.53"},
		{"0.005", "0.01"},
		{"2.675", "2.68"},
		{"-0.005", "-0.01"},
		{"10", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := RoundMoney(decimal.RequireFromString(tt.input))
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("RoundMoney(%s) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatLedgerDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"928", "928,00"},
		{"15.31", "15,31"},
		{"0", "0,00"},
		{"70.5", "70,50"},
		{"1234567.891", "1234567,89"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatLedgerDecimal(decimal.RequireFromString(tt.input)); got != tt.expected {
				t.Errorf("FormatLedgerDecimal(%s) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPeriodStartDate(t *testing.T) {
	h := &LedgerHeader{PeriodStart: "01032024"}
	got, ok := h.PeriodStartDate()
	if !ok {
		t.Fatal("expected period start to parse")
	}
	if got.Month() != 3 || got.Year() != 2024 {
		t.Errorf("expected March 2024, got %s", got.Format("2006-01"))
	}

	for _, bad := range []string{"", "0103", "32132024", "aabbcccc"} {
		h := &LedgerHeader{PeriodStart: bad}
		if _, ok := h.PeriodStartDate(); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}

	var nilHeader *LedgerHeader
	if _, ok := nilHeader.PeriodStartDate(); ok {
		t.Error("expected nil header to be rejected")
	}
}

func TestMonthName(t *testing.T) {
	if MonthName("01") != "Janeiro" {
		t.Errorf("expected Janeiro, got %s", MonthName("01"))
	}
	if MonthName("12") != "Dezembro" {
		t.Errorf("expected Dezembro, got %s", MonthName("12"))
	}
	if MonthName("00") != "00" {
		t.Errorf("expected unknown month to pass through, got %s", MonthName("00"))
	}

	s := &PeriodSummary{MonthName: MonthName("03"), Year: "2024"}
	if s.Label() != "Março/2024" {
		t.Errorf("unexpected label %q", s.Label())
	}
}

func TestOutcomeIsCalculated(t *testing.T) {
	var nilOutcome *CalculationOutcome
	if nilOutcome.IsCalculated() {
		t.Error("nil outcome must not be calculated")
	}
	if (&CalculationOutcome{Status: StatusSkipped}).IsCalculated() {
		t.Error("skipped outcome must not be calculated")
	}
	if !(&CalculationOutcome{Status: StatusCalculated}).IsCalculated() {
		t.Error("calculated outcome must report calculated")
	}
}
