// Package parsers reads SPED Contribuições ledgers and ICMS-ST reference tables.
//
// Two sources feed the exclusion pipeline:
//   - LedgerParser: pipe-delimited ledger text, tolerant of ragged rows and
//     malformed numbers, retaining every original line for the rewriter
//   - ReferenceTable: NCM → {markup, entry rate} lookup built from a
//     spreadsheet or CSV with loosely named columns
//
// The parsers themselves work on in-memory text and rows. File access,
// character set decoding and spreadsheet/CSV loading live in this file and
// in reference_file.go.
//
// Example usage:
//
//	content, err := parsers.ReadLedgerFile("jan_2024.txt", parsers.EncodingLatin1)
//	p := parsers.NewLedgerParser()
//	header, products, lines := p.Load(content)
//	for _, record := range p.Transactions() {
//		ncm := p.NCMForItem(record.ItemCode)
//		...
//	}
package parsers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"pis-cofins-recovery-service/pkg/errors"
	"pis-cofins-recovery-service/pkg/logger"
)

// Encoding names the character set of ledger files
type Encoding string

const (
	EncodingLatin1 Encoding = "latin1"
	EncodingUTF8   Encoding = "utf8"
)

// ParseEncoding accepts the usual spellings of the supported encodings
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	case "utf8", "utf-8":
		return EncodingUTF8, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q (use latin1 or utf8)", s)
	}
}

// DecodeLedger turns raw file bytes into text
func DecodeLedger(raw []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingUTF8:
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("content is not valid UTF-8")
		}
		return string(raw), nil
	default:
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), charmap.ISO8859_1.NewDecoder()))
		if err != nil {
			return "", fmt.Errorf("failed to decode latin-1 content: %w", err)
		}
		return string(decoded), nil
	}
}

// EncodeLedger turns text back into file bytes. Runes outside latin-1 are
// replaced rather than failing the whole file.
func EncodeLedger(text string, enc Encoding) ([]byte, error) {
	if enc == EncodingUTF8 {
		return []byte(text), nil
	}

	encoder := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	out, _, err := transform.Bytes(encoder, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode latin-1 content: %w", err)
	}
	return out, nil
}

// ReadLedgerFile reads and decodes a ledger file
func ReadLedgerFile(filePath string, enc Encoding) (string, error) {
	log := logger.GetGlobalLogger().WithComponent("ledger_reader")
	log.WithFields(logger.Fields{
		"file_path": filePath,
		"encoding":  enc,
	}).Debug("Reading ledger file")

	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.WithError(err).WithField("file_path", filePath).Error("Failed to read ledger file")
		return "", fileError(filePath, err)
	}

	content, err := DecodeLedger(raw, enc)
	if err != nil {
		return "", errors.EncodingError(filePath, 0, err)
	}

	return content, nil
}

// fileError maps os errors to the matching file error code
func fileError(filePath string, err error) *errors.RecoveryError {
	switch {
	case os.IsNotExist(err):
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	case os.IsPermission(err):
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	default:
		return errors.FileError(errors.CodeDirectoryError, filePath, err)
	}
}

// splitRecord trims a ledger line and strips one bracketing delimiter on each side
func splitRecord(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, false
	}
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	return strings.Split(trimmed, "|"), true
}

// field returns fields[i] or "" for ragged rows
func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}
