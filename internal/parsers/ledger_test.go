package parsers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const sampleLedger = "|0000|006|0|||01012024|31012024|MERCADO EXEMPLO LTDA|12345678000190|SP|3550308|\n" +
	"|0001|0|\n" +
	"|0200|P001|REFRIGERANTE 2L|||UN|00|22021000||||18,00|\n" +
	"|0200|P002|BISCOITO RECHEADO|||UN|00|1905.31.00|||\n" +
	"\n" +
	"|C870|P001|5405|1200,00|0,00|01|1000,00|1,65|16,50|01|1000,00|7,60|76,00|3.01.01|\n" +
	"|C870|P002|5102|300,00|0,00|01|300,00|1,65|4,95|01|300,00|7,60|22,80|3.01.01|\n" +
	"|9999|8|\n"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerParser_Load(t *testing.T) {
	p := NewLedgerParser()
	header, products, lineCount := p.Load(sampleLedger)

	if lineCount != 9 {
		t.Errorf("expected 9 lines (trailing newline yields an empty last line), got %d", lineCount)
	}

	if header == nil {
		t.Fatal("expected header to be parsed")
	}
	if header.CompanyName != "MERCADO EXEMPLO LTDA" {
		t.Errorf("unexpected company name %q", header.CompanyName)
	}
	if header.TaxID != "12345678000190" || header.UF != "SP" || header.MunicipalityCode != "3550308" {
		t.Errorf("unexpected header identity %+v", header)
	}
	if header.PeriodStart != "01012024" || header.PeriodEnd != "31012024" {
		t.Errorf("unexpected period %s-%s", header.PeriodStart, header.PeriodEnd)
	}

	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products["P001"].NCM != "22021000" {
		t.Errorf("expected NCM 22021000, got %s", products["P001"].NCM)
	}
	if !products["P001"].ICMSRate.Valid || !products["P001"].ICMSRate.Decimal.Equal(d("18")) {
		t.Errorf("expected declared ICMS rate 18, got %+v", products["P001"].ICMSRate)
	}
	if products["P002"].ICMSRate.Valid {
		t.Error("expected missing ICMS rate to be absent")
	}
	if products["P002"].NCM != "1905.31." {
		t.Errorf("expected product NCM to be the first 8 characters, got %q", products["P002"].NCM)
	}

	stats := p.Stats()
	if stats.BlankLines != 2 {
		t.Errorf("expected 2 blank lines, got %d", stats.BlankLines)
	}
	if stats.TagCounts["0001"] != 1 || stats.TagCounts["9999"] != 1 {
		t.Errorf("expected unknown tags to be counted, got %v", stats.TagCounts)
	}
	if stats.Transactions != 2 {
		t.Errorf("expected 2 transactions, got %d", stats.Transactions)
	}
}

func TestLedgerParser_Transactions(t *testing.T) {
	p := NewLedgerParser()
	p.Load(sampleLedger)

	records := p.Transactions()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	r := records[0]
	if r.LineNumber != 6 {
		t.Errorf("expected line number 6, got %d", r.LineNumber)
	}
	if r.ItemCode != "P001" || r.CFOP != "5405" {
		t.Errorf("unexpected identity %s/%s", r.ItemCode, r.CFOP)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"item value", r.ItemValue, "1200"},
		{"basis pis", r.BasisPIS, "1000"},
		{"rate pis", r.RatePIS, "1.65"},
		{"amount pis", r.AmountPIS, "16.5"},
		{"basis cofins", r.BasisCOFINS, "1000"},
		{"rate cofins", r.RateCOFINS, "7.6"},
		{"amount cofins", r.AmountCOFINS, "76"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, c.got)
		}
	}
	if r.AccountCode != "3.01.01" || r.CSTPIS != "01" || r.CSTCOFINS != "01" {
		t.Errorf("unexpected text fields %+v", r)
	}
	if !strings.HasPrefix(r.RawLine, "|C870|P001|") {
		t.Errorf("expected raw line to be kept, got %q", r.RawLine)
	}

	again := p.Transactions()
	if len(again) != len(records) || again[0] == records[0] {
		t.Error("expected Transactions to re-scan and return fresh records")
	}
	if again[1].LineNumber != records[1].LineNumber {
		t.Error("expected re-scan to produce the same line numbers")
	}
}

func TestLedgerParser_RaggedAndMalformed(t *testing.T) {
	content := "C870|P9|5405|abc\n" +
		"  |C870|P8|5405|10,00|0|01|1.000,00|1,65|x|01|50,00|7,6|3,80|3.01|  \r\n"

	p := NewLedgerParser()
	header, products, _ := p.Load(content)
	if header != nil {
		t.Error("expected no header")
	}
	if len(products) != 0 {
		t.Errorf("expected no products, got %d", len(products))
	}

	records := p.Transactions()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	short := records[0]
	if !short.ItemValue.IsZero() || !short.BasisPIS.IsZero() || short.AccountCode != "" {
		t.Errorf("expected ragged fields to default, got %+v", short)
	}

	damaged := records[1]
	if !damaged.BasisPIS.IsZero() {
		t.Errorf("expected '1.000,00' to default to zero, got %s", damaged.BasisPIS)
	}
	if !damaged.BasisCOFINS.Equal(d("50")) {
		t.Errorf("expected basis cofins 50, got %s", damaged.BasisCOFINS)
	}

	stats := p.Stats()
	if stats.ShortRecords != 1 {
		t.Errorf("expected 1 short record, got %d", stats.ShortRecords)
	}
	if stats.DefaultedFields != 3 {
		t.Errorf("expected 3 defaulted fields (abc, 1.000,00, x), got %d: %v", stats.DefaultedFields, stats.DefaultedSamples)
	}
}

func TestLedgerParser_ExponentFieldsDefault(t *testing.T) {
	content := "|C870|P8|5405|1e99999999|0|01|1E-3|1,65|16,50|01|0x10|7,60|76,00|3.01|\n"

	p := NewLedgerParser()
	p.Load(content)

	records := p.Transactions()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	for name, value := range map[string]string{
		"item value":   rec.ItemValue.String(),
		"basis pis":    rec.BasisPIS.String(),
		"basis cofins": rec.BasisCOFINS.String(),
	} {
		if value != "0" {
			t.Errorf("%s: expected 0, got %s", name, value)
		}
	}
	if !rec.AmountPIS.Equal(d("16.50")) {
		t.Errorf("expected amount pis 16.50, got %s", rec.AmountPIS)
	}

	if got := p.Stats().DefaultedFields; got != 3 {
		t.Errorf("expected 3 defaulted fields, got %d: %v", got, p.Stats().DefaultedSamples)
	}
}

func TestLedgerParser_FirstHeaderWinsAndProductsLastWin(t *testing.T) {
	content := "|0000|006|0|||01022024|29022024|PRIMEIRA|111|SP|1|\n" +
		"|0000|006|0|||01032024|31032024|SEGUNDA|222|RJ|2|\n" +
		"|0200|P1|OLD|||UN|00|11111111|\n" +
		"|0200|P1|NEW|||UN|00|22222222|\n"

	p := NewLedgerParser()
	header, products, _ := p.Load(content)
	if header.CompanyName != "PRIMEIRA" {
		t.Errorf("expected first header to win, got %s", header.CompanyName)
	}
	if products["P1"].Description != "NEW" || p.NCMForItem("P1") != "22222222" {
		t.Errorf("expected last product to win, got %+v", products["P1"])
	}
	if p.NCMForItem("missing") != "" {
		t.Error("expected unknown item to resolve to empty NCM")
	}
}

func TestLedgerParser_Reload(t *testing.T) {
	p := NewLedgerParser()
	p.Load(sampleLedger)
	_, products, lines := p.Load("|9999|1|")

	if lines != 1 || len(products) != 0 || p.Header() != nil {
		t.Error("expected Load to discard previous state")
	}
	if len(p.Transactions()) != 0 {
		t.Error("expected no transactions after reload")
	}
}

func TestDecodeEncodeLedger(t *testing.T) {
	latin1 := []byte("|0200|P1|A\xc7\xdaCAR|\n")

	text, err := DecodeLedger(latin1, EncodingLatin1)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if text != "|0200|P1|AÇÚCAR|\n" {
		t.Errorf("unexpected decoded text %q", text)
	}

	back, err := EncodeLedger(text, EncodingLatin1)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(back) != string(latin1) {
		t.Errorf("expected round trip to original bytes, got %q", back)
	}

	if _, err := DecodeLedger(latin1, EncodingUTF8); err == nil {
		t.Error("expected invalid UTF-8 to be rejected")
	}

	replaced, err := EncodeLedger("preço €", EncodingLatin1)
	if err != nil {
		t.Fatalf("encode with unsupported rune failed: %v", err)
	}
	if len(replaced) != 7 || !strings.HasPrefix(string(replaced), "pre\xe7o ") {
		t.Errorf("expected unsupported rune to be replaced by one byte, got %q", replaced)
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		input   string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingLatin1, false},
		{"ISO-8859-1", EncodingLatin1, false},
		{"latin-1", EncodingLatin1, false},
		{"UTF-8", EncodingUTF8, false},
		{"cp1252", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEncoding(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEncoding(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEncoding(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
