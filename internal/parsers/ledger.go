package parsers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pis-cofins-recovery-service/internal/models"
)

// Minimum number of fields a C870 record needs to carry every value the
// calculator and rewriter read.
const transactionFieldCount = 14

// LedgerStats describes what a load found in the ledger
type LedgerStats struct {
	LineCount        int            `json:"line_count"`
	BlankLines       int            `json:"blank_lines"`
	TagCounts        map[string]int `json:"tag_counts"`
	HeaderRecords    int            `json:"header_records"`
	ProductRecords   int            `json:"product_records"`
	Transactions     int            `json:"transactions"`
	ShortRecords     int            `json:"short_records"`
	DefaultedFields  int            `json:"defaulted_fields"`
	DefaultedSamples []string       `json:"defaulted_samples,omitempty"`
}

// String returns a human-readable summary of the statistics
func (s *LedgerStats) String() string {
	return fmt.Sprintf("%d lines (%d blank), %d products, %d transactions, %d short records, %d numeric fields defaulted to zero",
		s.LineCount, s.BlankLines, s.ProductRecords, s.Transactions, s.ShortRecords, s.DefaultedFields)
}

const maxDefaultedSamples = 5

// LedgerParser holds one ledger's lines, header and product map
type LedgerParser struct {
	lines    []string
	header   *models.LedgerHeader
	products map[string]*models.ProductReference
	stats    LedgerStats
}

// NewLedgerParser creates an empty parser
func NewLedgerParser() *LedgerParser {
	return &LedgerParser{
		products: make(map[string]*models.ProductReference),
		stats:    LedgerStats{TagCounts: make(map[string]int)},
	}
}

// Load splits content into lines and extracts the header and product map.
// Any previous state is discarded. The returned line count includes blank lines.
func (p *LedgerParser) Load(content string) (*models.LedgerHeader, map[string]*models.ProductReference, int) {
	p.lines = strings.Split(content, "\n")
	p.header = nil
	p.products = make(map[string]*models.ProductReference)
	p.stats = LedgerStats{
		LineCount: len(p.lines),
		TagCounts: make(map[string]int),
	}

	for lineNumber, line := range p.lines {
		fields, ok := splitRecord(line)
		if !ok {
			p.stats.BlankLines++
			continue
		}

		tag := fields[0]
		p.stats.TagCounts[tag]++

		switch tag {
		case models.TagHeader:
			p.stats.HeaderRecords++
			if p.header == nil {
				p.header = parseHeader(fields)
			}
		case models.TagProduct:
			p.stats.ProductRecords++
			product := parseProduct(fields)
			p.products[product.ItemCode] = product
		case models.TagTransaction:
			p.stats.Transactions++
			if len(fields) < transactionFieldCount {
				p.stats.ShortRecords++
			}
			p.countDefaulted(lineNumber+1, fields)
		}
	}

	return p.header, p.products, len(p.lines)
}

// Transactions re-scans the stored lines and returns every C870 record in
// line order. Each call builds a fresh slice.
func (p *LedgerParser) Transactions() []*models.TransactionRecord {
	records := make([]*models.TransactionRecord, 0, p.stats.Transactions)
	for i, line := range p.lines {
		fields, ok := splitRecord(line)
		if !ok || fields[0] != models.TagTransaction {
			continue
		}
		records = append(records, parseTransaction(i+1, fields, line))
	}
	return records
}

// Lines returns the original line sequence
func (p *LedgerParser) Lines() []string {
	return p.lines
}

// Header returns the first header record, or nil
func (p *LedgerParser) Header() *models.LedgerHeader {
	return p.header
}

// NCMForItem resolves an item code to its NCM through the product map
func (p *LedgerParser) NCMForItem(itemCode string) string {
	if product, ok := p.products[itemCode]; ok {
		return product.NCM
	}
	return ""
}

// Stats returns a copy of the load statistics
func (p *LedgerParser) Stats() LedgerStats {
	stats := p.stats
	stats.TagCounts = make(map[string]int, len(p.stats.TagCounts))
	for tag, count := range p.stats.TagCounts {
		stats.TagCounts[tag] = count
	}
	stats.DefaultedSamples = append([]string(nil), p.stats.DefaultedSamples...)
	return stats
}

// countDefaulted records numeric C870 fields that were present but unparsable
func (p *LedgerParser) countDefaulted(lineNumber int, fields []string) {
	for _, i := range []int{3, 4, 6, 7, 8, 10, 11, 12} {
		if i >= len(fields) {
			break
		}
		if _, defaulted := models.ParseDecimalField(fields[i]); defaulted {
			p.stats.DefaultedFields++
			if len(p.stats.DefaultedSamples) < maxDefaultedSamples {
				p.stats.DefaultedSamples = append(p.stats.DefaultedSamples,
					fmt.Sprintf("line %d field %d: %q", lineNumber, i, fields[i]))
			}
		}
	}
}

func parseHeader(fields []string) *models.LedgerHeader {
	return &models.LedgerHeader{
		LayoutVersion:    field(fields, 1),
		BookkeepingType:  field(fields, 2),
		PeriodStart:      field(fields, 5),
		PeriodEnd:        field(fields, 6),
		CompanyName:      field(fields, 7),
		TaxID:            field(fields, 8),
		UF:               field(fields, 9),
		MunicipalityCode: field(fields, 10),
	}
}

func parseProduct(fields []string) *models.ProductReference {
	ncm := field(fields, 7)
	if len(ncm) > 8 {
		ncm = ncm[:8]
	}

	product := &models.ProductReference{
		ItemCode:    field(fields, 1),
		Description: field(fields, 2),
		NCM:         ncm,
	}
	if rate := field(fields, 11); strings.TrimSpace(rate) != "" {
		product.ICMSRate = decimal.NewNullDecimal(models.ParseLocaleDecimal(rate))
	}
	return product
}

func parseTransaction(lineNumber int, fields []string, raw string) *models.TransactionRecord {
	num := func(i int) decimal.Decimal {
		return models.ParseLocaleDecimal(field(fields, i))
	}

	return &models.TransactionRecord{
		LineNumber:   lineNumber,
		ItemCode:     field(fields, 1),
		CFOP:         field(fields, 2),
		ItemValue:    num(3),
		Discount:     num(4),
		CSTPIS:       field(fields, 5),
		BasisPIS:     num(6),
		RatePIS:      num(7),
		AmountPIS:    num(8),
		CSTCOFINS:    field(fields, 9),
		BasisCOFINS:  num(10),
		RateCOFINS:   num(11),
		AmountCOFINS: num(12),
		AccountCode:  field(fields, 13),
		RawLine:      raw,
	}
}
