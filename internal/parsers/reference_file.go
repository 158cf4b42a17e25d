package parsers

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// LoadReferenceFile reads a reference table from .xlsx/.xlsm (excelize) or
// .csv (gota) and indexes it.
func LoadReferenceFile(filePath string, config *ReferenceConfig) (*ReferenceTable, error) {
	if config == nil {
		config = DefaultReferenceConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reference", config, err)
	}

	log := logger.GetGlobalLogger().WithComponent("reference_loader").WithField("file_path", filePath)

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbookRows(filePath, config.Sheet)
	case ".csv", ".txt":
		rows, err = readCSVRows(filePath, config.Delimiter)
	default:
		return nil, errors.UnsupportedFileError(filePath)
	}
	if err != nil {
		log.WithError(err).Error("Failed to read reference table")
		return nil, err
	}

	table := NewReferenceTable(config)
	count := table.Load(rows)
	stats := table.Stats()

	log.WithFields(logger.Fields{
		"rows":              stats.RowsRead,
		"indexed":           count,
		"dropped_no_ncm":    stats.DroppedNoNCM,
		"dropped_no_markup": stats.DroppedNoMarkup,
		"duplicates":        stats.Duplicates,
	}).Info("Reference table loaded")

	if len(rows) > 0 {
		columns := table.Columns()
		if missing := columns.Missing(); len(missing) > 0 {
			return nil, errors.MissingColumnError(filePath, missing, rows[0])
		}
	}

	if table.Len() == 0 {
		return nil, errors.CalculationError(errors.CodeEmptyReference, "reference load", nil).
			WithContext("file_path", filePath).
			WithContext("rows", stats.RowsRead)
	}

	return table, nil
}

func readWorkbookRows(filePath, sheet string) ([][]string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fileError(filePath, err)
	}

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if !containsSheet(f.GetSheetList(), sheet) {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sheet", sheet,
			fmt.Errorf("sheet not found; available: %s", strings.Join(f.GetSheetList(), ", ")))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, filePath, 0, "sheet", sheet, err)
	}
	return rows, nil
}

func containsSheet(sheets []string, name string) bool {
	for _, s := range sheets {
		if s == name {
			return true
		}
	}
	return false
}

func readCSVRows(filePath string, delimiter rune) ([][]string, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fileError(filePath, err)
	}

	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	// Spreadsheet exports on Brazilian desktops are usually Windows-1252.
	text := string(raw)
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, errors.EncodingError(filePath, 0, err)
		}
		text = string(decoded)
	}

	if delimiter == 0 {
		delimiter = detectDelimiter(text)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, filePath, 0, "csv", string(delimiter), err)
	}

	df := dataframe.LoadRecords(padRecords(records),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if err := df.Error(); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, filePath, 0, "csv", string(delimiter), err)
	}

	return df.Records(), nil
}

// padRecords fits every row to the header width. Short rows get blank
// cells, matching what excelize returns for a workbook.
func padRecords(records [][]string) [][]string {
	if len(records) == 0 {
		return records
	}
	width := len(records[0])
	for i, row := range records {
		switch {
		case len(row) < width:
			records[i] = append(row, make([]string, width-len(row))...)
		case len(row) > width:
			records[i] = row[:width]
		}
	}
	return records
}

// detectDelimiter picks the most frequent candidate on the header line
func detectDelimiter(text string) rune {
	scanner := bufio.NewScanner(strings.NewReader(text))
	if !scanner.Scan() {
		return ','
	}
	header := scanner.Text()

	best, bestCount := ',', strings.Count(header, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if n := strings.Count(header, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}
