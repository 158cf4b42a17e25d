package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pis-cofins-recovery-service/internal/models"
	"pis-cofins-recovery-service/internal/parsers"
)

// LedgerGenerator produces SPED Contribuições ledgers and a matching
// ICMS-ST reference table
type LedgerGenerator struct {
	Company   string
	TaxID     string
	Records   int
	Seed      int64
	LineBreak string

	rng *rand.Rand
}

// ProductTemplate is one catalogue item, emitted as a 0200 record and,
// when InReference is set, as a reference table row
type ProductTemplate struct {
	ItemCode    string
	Description string
	NCM         string
	ICMSRate    decimal.Decimal
	Markup      decimal.Decimal
	EntryRate   decimal.Decimal
	InReference bool
}

var catalogue = []ProductTemplate{
	{Description: "REFRIGERANTE COLA 2L", NCM: "22021000", Markup: dec("40"), EntryRate: dec("18"), InReference: true},
	{Description: "CERVEJA LATA 350ML", NCM: "22030000", Markup: dec("70"), EntryRate: dec("25"), InReference: true},
	{Description: "AGUA MINERAL 500ML", NCM: "22011000", Markup: dec("100"), EntryRate: dec("18"), InReference: true},
	{Description: "SHAMPOO ANTICASPA", NCM: "33051000", Markup: dec("38,18"), EntryRate: dec("18"), InReference: true},
	{Description: "PNEU ARO 14", NCM: "40111000", Markup: dec("42"), EntryRate: dec("18"), InReference: true},
	{Description: "OLEO LUBRIFICANTE 1L", NCM: "27101932", Markup: dec("61,31"), EntryRate: dec("18"), InReference: true},
	{Description: "LAMPADA LED 9W", NCM: "85395000", Markup: dec("40,1"), EntryRate: dec("12"), InReference: true},
	{Description: "SORVETE POTE 2L", NCM: "21050010", Markup: dec("70"), EntryRate: dec("18"), InReference: true},
	{Description: "RAÇÃO CÃES 15KG", NCM: "23091000", Markup: dec("46"), EntryRate: dec("12"), InReference: true},
	{Description: "BISCOITO RECHEADO", NCM: "19053100", Markup: dec("0"), EntryRate: dec("18"), InReference: true},
	{Description: "AÇÚCAR REFINADO 1KG", NCM: "17019900", InReference: false},
}

var cfopWeights = []struct {
	CFOP   string
	Weight int
}{
	{"5405", 60},
	{"5403", 10},
	{"5102", 25},
	{"5401", 5},
}

func main() {
	var (
		outputDir    = flag.String("output-dir", "generated", "Output directory for generated files")
		months       = flag.Int("months", 3, "Number of consecutive monthly ledgers to generate")
		start        = flag.String("start", "2024-01", "First period (YYYY-MM)")
		records      = flag.Int("records", 200, "C870 records per ledger")
		company      = flag.String("company", "COMERCIAL EXEMPLO LTDA", "Company name written to the 0000 record")
		taxID        = flag.String("tax-id", "12345678000190", "CNPJ written to the 0000 record")
		seed         = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		scenario     = flag.String("scenario", "random", "Scenario to generate: random, edge-cases, all")
		refFormat    = flag.String("reference-format", "csv", "Reference table format: csv, xlsx, both")
		crlf         = flag.Bool("crlf", false, "Use CRLF line endings in ledgers")
		encodingName = flag.String("encoding", "latin1", "Ledger encoding: latin1, utf8")
	)
	flag.Parse()

	period, err := time.Parse("2006-01", *start)
	if err != nil {
		log.Fatalf("Invalid start period: %v", err)
	}

	enc, err := parsers.ParseEncoding(*encodingName)
	if err != nil {
		log.Fatalf("Invalid encoding: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := NewLedgerGenerator(*company, *taxID, *records, *seed)
	if *crlf {
		generator.LineBreak = "\r\n"
	}
	products := generator.Products()

	var written []string
	if *scenario == "random" || *scenario == "all" {
		for i := 0; i < *months; i++ {
			month := period.AddDate(0, i, 0)
			path := filepath.Join(*outputDir, fmt.Sprintf("sped_%02d_%d.txt", month.Month(), month.Year()))
			if err := writeLedger(path, generator.GenerateLedger(month, products), enc); err != nil {
				log.Fatalf("Failed to write ledger: %v", err)
			}
			written = append(written, path)
		}
	}
	if *scenario == "edge-cases" || *scenario == "all" {
		path := filepath.Join(*outputDir, fmt.Sprintf("sped_edge_%02d_%d.txt", period.Month(), period.Year()))
		if err := writeLedger(path, generator.GenerateEdgeCases(period, products), enc); err != nil {
			log.Fatalf("Failed to write ledger: %v", err)
		}
		written = append(written, path)
	}
	if len(written) == 0 {
		log.Fatalf("Unknown scenario: %s", *scenario)
	}

	switch *refFormat {
	case "csv", "xlsx", "both":
	default:
		log.Fatalf("Unknown reference format: %s", *refFormat)
	}
	if *refFormat == "csv" || *refFormat == "both" {
		path := filepath.Join(*outputDir, "base_st.csv")
		if err := WriteReferenceCSV(path, products); err != nil {
			log.Fatalf("Failed to write reference CSV: %v", err)
		}
		written = append(written, path)
	}
	if *refFormat == "xlsx" || *refFormat == "both" {
		path := filepath.Join(*outputDir, "base_st.xlsx")
		if err := WriteReferenceXLSX(path, products); err != nil {
			log.Fatalf("Failed to write reference workbook: %v", err)
		}
		written = append(written, path)
	}

	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}
	fmt.Printf("Records per ledger: %d\n", *records)
	fmt.Printf("Seed used: %d\n", *seed)
}

// NewLedgerGenerator creates a generator with LF line endings
func NewLedgerGenerator(company, taxID string, records int, seed int64) *LedgerGenerator {
	return &LedgerGenerator{
		Company:   company,
		TaxID:     taxID,
		Records:   records,
		Seed:      seed,
		LineBreak: "\n",
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Products numbers the catalogue items
func (g *LedgerGenerator) Products() []ProductTemplate {
	products := make([]ProductTemplate, len(catalogue))
	for i, p := range catalogue {
		p.ItemCode = fmt.Sprintf("P%04d", i+1)
		p.ICMSRate = dec("18")
		products[i] = p
	}
	return products
}

// GenerateLedger builds one month: header, product block, C870 records and trailer
func (g *LedgerGenerator) GenerateLedger(period time.Time, products []ProductTemplate) string {
	var lines []string
	lines = append(lines, g.headerLine(period), "|0001|0|")
	for _, p := range products {
		lines = append(lines, productLine(p))
	}

	lines = append(lines, "|C001|0|")
	for i := 0; i < g.Records; i++ {
		p := products[g.rng.Intn(len(products))]
		value := decimal.NewFromFloat(10 + g.rng.Float64()*4990).Round(2)
		discount := decimal.Zero
		if g.rng.Intn(10) == 0 {
			discount = value.Mul(dec("0,05")).Round(2)
		}
		lines = append(lines, transactionLine(p.ItemCode, g.pickCFOP(), value, discount))
	}
	lines = append(lines, fmt.Sprintf("|C990|%d|", g.Records+2))

	lines = append(lines, fmt.Sprintf("|9999|%d|", len(lines)+1))
	return strings.Join(lines, g.LineBreak) + g.LineBreak
}

// GenerateEdgeCases builds a ledger exercising the parser's tolerance:
// blank lines, ragged and short records, malformed numbers, items without
// NCM or without a reference entry, and a C870 before its 0200.
func (g *LedgerGenerator) GenerateEdgeCases(period time.Time, products []ProductTemplate) string {
	ref := products[0]
	lines := []string{
		g.headerLine(period),
		"",
		"|0000|006|0|||01011999|31011999|SEGUNDO CABECALHO|00000000000000|RJ|3304557|",
		"|C870|P9999|5405|100,00|0,00|01|100,00|1,65|1,65|01|100,00|7,60|7,60|3.01.01|",
		productLine(ref),
		"|0200|P9999|ITEM SEM NCM|||UN|00||",
		"|0200|P8888|NCM CURTO|||UN|00|2202|",
		"|0200|P7777|NCM LONGO|||UN|00|2202100099|",
		productLine(products[len(products)-1]),
		transactionLine(ref.ItemCode, "5405", dec("1000"), decimal.Zero),
		transactionLine(ref.ItemCode, "5102", dec("1000"), decimal.Zero),
		"|C870|" + ref.ItemCode + "|5405|1.234,56|0,00|01|1.234,56|1,65|20,37|01|1.234,56|7,60|93,83|3.01.01|",
		"|C870|" + ref.ItemCode + "|5405|50,00|",
		"|C870|P9999|5405|200,00|0,00|01|200,00|1,65|3,30|01|200,00|7,60|15,20|3.01.01|",
		"|C870|P7777|5405|200,00|0,00|01|200,00|1,65|3,30|01|200,00|7,60|15,20|3.01.01|",
		transactionLine(products[len(products)-1].ItemCode, "5405", dec("80"), decimal.Zero),
		"   ",
		"|C870|" + ref.ItemCode + "|5405|10,00|0,00|01|10,00|1,65|0,17|01|10,00|7,60|0,76|3.01.01|extra|campos|",
		"|9999|18|",
	}
	return strings.Join(lines, g.LineBreak) + g.LineBreak
}

func (g *LedgerGenerator) headerLine(period time.Time) string {
	first := time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return fmt.Sprintf("|0000|006|0|||%s|%s|%s|%s|SP|3550308|",
		first.Format("02012006"), last.Format("02012006"), g.Company, g.TaxID)
}

func (g *LedgerGenerator) pickCFOP() string {
	total := 0
	for _, w := range cfopWeights {
		total += w.Weight
	}
	n := g.rng.Intn(total)
	for _, w := range cfopWeights {
		if n < w.Weight {
			return w.CFOP
		}
		n -= w.Weight
	}
	return cfopWeights[0].CFOP
}

func productLine(p ProductTemplate) string {
	return fmt.Sprintf("|0200|%s|%s|||UN|00|%s||||%s|",
		p.ItemCode, p.Description, p.NCM, models.FormatLedgerDecimal(p.ICMSRate))
}

func transactionLine(itemCode, cfop string, value, discount decimal.Decimal) string {
	basis := value.Sub(discount)
	pis := models.RoundMoney(basis.Mul(dec("1,65")).Shift(-2))
	cofins := models.RoundMoney(basis.Mul(dec("7,6")).Shift(-2))
	return fmt.Sprintf("|C870|%s|%s|%s|%s|01|%s|1,65|%s|01|%s|7,60|%s|3.01.01.01|",
		itemCode, cfop,
		models.FormatLedgerDecimal(value), models.FormatLedgerDecimal(discount),
		models.FormatLedgerDecimal(basis), models.FormatLedgerDecimal(pis),
		models.FormatLedgerDecimal(basis), models.FormatLedgerDecimal(cofins))
}

func writeLedger(path, content string, enc parsers.Encoding) error {
	data, err := parsers.EncodeLedger(content, enc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func referenceRecords(products []ProductTemplate) [][]string {
	records := [][]string{{"NCM", "Descrição", "MVA Original (%)", "Alíq. Efetiva Entrada"}}
	for _, p := range products {
		if !p.InReference {
			continue
		}
		records = append(records, []string{
			p.NCM,
			p.Description,
			strings.Replace(p.Markup.String(), ".", ",", 1),
			strings.Replace(p.EntryRate.String(), ".", ",", 1),
		})
	}
	return records
}

// WriteReferenceCSV writes the reference table as a comma separated CSV
func WriteReferenceCSV(path string, products []ProductTemplate) error {
	df := dataframe.LoadRecords(referenceRecords(products),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if err := df.Error(); err != nil {
		return fmt.Errorf("failed to build reference frame: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return df.WriteCSV(file)
}

// WriteReferenceXLSX writes the reference table to the first sheet of a workbook
func WriteReferenceXLSX(path string, products []ProductTemplate) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Base ST"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	for i, record := range referenceRecords(products) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(strings.Replace(s, ",", ".", 1))
}
