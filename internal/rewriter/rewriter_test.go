package rewriter

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"pis-cofins-recovery-service/internal/models"
)

const ledger = "|0000|006|0|||01012024|31012024|MERCADO EXEMPLO LTDA|12345678000190|SP|3550308|\r\n" +
	"|0200|P001|REFRIGERANTE 2L|||UN|00|22021000||||18,00|\r\n" +
	"|C870|P001|5405|1200,00|0,00|01|1000,00|1,65|16,50|01|1000,00|7,60|76,00|3.01.01|\r\n" +
	"|C870|P002|5102|300,00|0,00|01|300,00|1,65|4,95|01|300,00|7,60|22,80|3.01.01|\r\n" +
	"|9999|4|\r\n"

func calculated(line int) *models.CalculationOutcome {
	return &models.CalculationOutcome{
		LineNumber:      line,
		Status:          models.StatusCalculated,
		NewBasisPIS:     decimal.RequireFromString("928"),
		NewAmountPIS:    decimal.RequireFromString("15.31"),
		NewBasisCOFINS:  decimal.RequireFromString("928"),
		NewAmountCOFINS: decimal.RequireFromString("70.53"),
	}
}

func TestGenerate_NoOutcomesIsIdentity(t *testing.T) {
	lines := strings.Split(ledger, "\n")
	if got := Generate(lines, nil); got != ledger {
		t.Errorf("expected identical output, got %q", got)
	}
}

func TestGenerate_ReplacesCalculatedFields(t *testing.T) {
	lines := strings.Split(ledger, "\n")
	skipped := &models.CalculationOutcome{LineNumber: 4, Status: models.StatusSkipped}

	got := Generate(lines, IndexByLine([]*models.CalculationOutcome{calculated(3), skipped}))
	gotLines := strings.Split(got, "\n")

	if len(gotLines) != len(lines) {
		t.Fatalf("expected %d lines, got %d", len(lines), len(gotLines))
	}

	want := "|C870|P001|5405|1200,00|0,00|01|928,00|1,65|15,31|01|928,00|7,60|70,53|3.01.01|\r"
	if gotLines[2] != want {
		t.Errorf("unexpected rewritten line\n got: %q\nwant: %q", gotLines[2], want)
	}

	for _, i := range []int{0, 1, 3, 4, 5} {
		if gotLines[i] != lines[i] {
			t.Errorf("line %d changed: %q", i+1, gotLines[i])
		}
	}
}

func TestRewriteLine(t *testing.T) {
	outcome := calculated(1)

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "bracketed",
			line: "|C870|P1|5405|1|0|01|1|1|1|01|1|1|1|3.01|",
			want: "|C870|P1|5405|1|0|01|928,00|1|15,31|01|928,00|1|70,53|3.01|",
		},
		{
			name: "no brackets",
			line: "C870|P1|5405|1|0|01|1|1|1|01|1|1|1|3.01",
			want: "C870|P1|5405|1|0|01|928,00|1|15,31|01|928,00|1|70,53|3.01",
		},
		{
			name: "surrounding whitespace",
			line: "  |C870|P1|5405|1|0|01|1|1|1|01|1|1|1|  ",
			want: "  |C870|P1|5405|1|0|01|928,00|1|15,31|01|928,00|1|70,53|  ",
		},
		{
			name: "exactly thirteen fields",
			line: "|C870|P1|5405|1|0|01|1|1|1|01|1|1|1|",
			want: "|C870|P1|5405|1|0|01|928,00|1|15,31|01|928,00|1|70,53|",
		},
		{
			name: "short record unchanged",
			line: "|C870|P1|5405|1|0|01|1|1|1|01|1|1|",
			want: "|C870|P1|5405|1|0|01|1|1|1|01|1|1|",
		},
		{
			name: "blank unchanged",
			line: "   ",
			want: "   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RewriteLine(tt.line, outcome); got != tt.want {
				t.Errorf("RewriteLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerate_StableForFixedOutcomes(t *testing.T) {
	lines := strings.Split(ledger, "\n")
	outcomes := IndexByLine([]*models.CalculationOutcome{calculated(3)})

	first := Generate(lines, outcomes)
	second := Generate(strings.Split(first, "\n"), outcomes)

	if first != second {
		t.Errorf("expected second pass to be a no-op\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestGenerate_NegativeValuesKeepSign(t *testing.T) {
	outcome := calculated(1)
	outcome.NewAmountPIS = decimal.RequireFromString("-0.5")

	got := RewriteLine("|C870|P1|5405|1|0|01|1|1|1|01|1|1|1|", outcome)
	if !strings.Contains(got, "|-0,50|") {
		t.Errorf("expected -0,50 in %q", got)
	}
}
