package parsers

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pis-cofins-recovery-service/internal/models"
)

// ColumnMapping is the fixed column index per target; -1 when absent
type ColumnMapping struct {
	NCM            int `json:"ncm"`
	Chapter        int `json:"chapter"`
	Item           int `json:"item"`
	Markup         int `json:"markup"`
	AdjustedMarkup int `json:"adjusted_markup"`
	EntryRate      int `json:"entry_rate"`
}

func newColumnMapping() ColumnMapping {
	return ColumnMapping{NCM: -1, Chapter: -1, Item: -1, Markup: -1, AdjustedMarkup: -1, EntryRate: -1}
}

func (m *ColumnMapping) slot(target string) *int {
	switch target {
	case ColumnNCM:
		return &m.NCM
	case ColumnChapter:
		return &m.Chapter
	case ColumnItem:
		return &m.Item
	case ColumnMarkup:
		return &m.Markup
	case ColumnAdjustedMarkup:
		return &m.AdjustedMarkup
	case ColumnEntryRate:
		return &m.EntryRate
	}
	return nil
}

// markupColumn prefers the plain markup column over the adjusted one
func (m *ColumnMapping) markupColumn() int {
	if m.Markup >= 0 {
		return m.Markup
	}
	return m.AdjustedMarkup
}

// Missing lists what the header lacks to produce any entry
func (m *ColumnMapping) Missing() []string {
	var missing []string
	if m.NCM < 0 && (m.Chapter < 0 || m.Item < 0) {
		missing = append(missing, "ncm (or capitulo + item)")
	}
	if m.markupColumn() < 0 {
		missing = append(missing, "mva")
	}
	return missing
}

// columnRule assigns a target to a normalized header name
type columnRule struct {
	target  string
	matches func(name string) bool
}

func exactly(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if name == n {
				return true
			}
		}
		return false
	}
}

func containsAny(name string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}

// Each column takes the first rule it matches; when several columns match
// the same target the rightmost wins. The entry-rate rule runs before the
// markup rules because names like "aliq efetiva entrada" contain "iva".
var columnRules = []columnRule{
	{ColumnNCM, exactly("ncm", "cod_ncm", "cod ncm", "codigo ncm", "codigo_ncm", "ncm/sh")},
	{ColumnChapter, exactly("capitulo", "chapter")},
	{ColumnItem, exactly("item")},
	{ColumnEntryRate, func(name string) bool {
		return containsAny(name, "aliq", "rate") && containsAny(name, "entrada", "entry")
	}},
	{ColumnAdjustedMarkup, func(name string) bool {
		return containsAny(name, "mva", "iva") && !strings.Contains(name, "import") && containsAny(name, "ajust", "adjust")
	}},
	{ColumnMarkup, func(name string) bool {
		return containsAny(name, "mva", "iva") && !strings.Contains(name, "import")
	}},
}

// normalizeColumnName trims, lower-cases and removes accents
func normalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		return name
	}
	return folded
}

// ResolveColumns maps header cells to targets. Configured aliases win,
// then each remaining column is checked once against the rule list.
// Columns are scanned left to right, so a later match replaces an earlier one.
func ResolveColumns(headers []string, config *ReferenceConfig) ColumnMapping {
	mapping := newColumnMapping()
	claimed := make(map[int]bool)
	aliased := make(map[string]bool)

	for _, target := range KnownColumnTargets() {
		alias := normalizeColumnName(config.GetColumnName(target))
		if alias == "" {
			continue
		}
		for i, header := range headers {
			if normalizeColumnName(header) == alias {
				*mapping.slot(target) = i
				claimed[i] = true
				aliased[target] = true
				break
			}
		}
	}

	for i, header := range headers {
		if claimed[i] {
			continue
		}
		name := normalizeColumnName(header)
		for _, rule := range columnRules {
			if !rule.matches(name) {
				continue
			}
			if !aliased[rule.target] {
				*mapping.slot(rule.target) = i
			}
			break
		}
	}

	return mapping
}

// ReferenceLoadStats describes the rows seen by Load
type ReferenceLoadStats struct {
	RowsRead        int `json:"rows_read"`
	DroppedNoNCM    int `json:"dropped_no_ncm"`
	DroppedNoMarkup int `json:"dropped_no_markup"`
	Duplicates      int `json:"duplicates"`
	DefaultedRates  int `json:"defaulted_rates"`
	Indexed         int `json:"indexed"`
}

// String returns a human-readable summary of the statistics
func (s ReferenceLoadStats) String() string {
	return fmt.Sprintf("%d rows, %d indexed, %d without NCM, %d without markup, %d duplicates",
		s.RowsRead, s.Indexed, s.DroppedNoNCM, s.DroppedNoMarkup, s.Duplicates)
}

// ReferenceTable is the NCM → markup/rate lookup
type ReferenceTable struct {
	config  *ReferenceConfig
	entries map[string]*models.ReferenceEntry
	columns ColumnMapping
	stats   ReferenceLoadStats
}

// NewReferenceTable creates an empty table
func NewReferenceTable(config *ReferenceConfig) *ReferenceTable {
	if config == nil {
		config = DefaultReferenceConfig()
	}
	return &ReferenceTable{
		config:  config,
		entries: make(map[string]*models.ReferenceEntry),
		columns: newColumnMapping(),
	}
}

// Load indexes rows, where rows[0] is the header. Later rows overwrite
// earlier ones for the same NCM. Returns the number of distinct NCMs
// indexed by this call.
func (t *ReferenceTable) Load(rows [][]string) int {
	t.stats = ReferenceLoadStats{}
	if len(rows) == 0 {
		t.columns = newColumnMapping()
		return 0
	}

	t.columns = ResolveColumns(rows[0], t.config)
	markupCol := t.columns.markupColumn()
	loaded := make(map[string]bool)

	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		t.stats.RowsRead++

		ncm, ok := t.rowNCM(row)
		if !ok {
			t.stats.DroppedNoNCM++
			continue
		}

		markup, ok := models.ParsePercentage(cell(row, markupCol))
		if !ok {
			t.stats.DroppedNoMarkup++
			continue
		}

		rate, ok := models.ParsePercentage(cell(row, t.columns.EntryRate))
		if !ok {
			rate = models.DefaultTaxRate
			t.stats.DefaultedRates++
		}

		if loaded[ncm] {
			t.stats.Duplicates++
		}
		loaded[ncm] = true
		t.entries[ncm] = &models.ReferenceEntry{NCM: ncm, Markup: markup, TaxRate: rate}
	}

	t.stats.Indexed = len(loaded)
	return len(loaded)
}

// Lookup returns the entry for an 8-digit NCM
func (t *ReferenceTable) Lookup(ncm string) (*models.ReferenceEntry, bool) {
	entry, ok := t.entries[ncm]
	return entry, ok
}

// Len returns the number of indexed NCMs
func (t *ReferenceTable) Len() int {
	return len(t.entries)
}

// Columns returns the mapping resolved by the last Load
func (t *ReferenceTable) Columns() ColumnMapping {
	return t.columns
}

// Stats returns the statistics of the last Load
func (t *ReferenceTable) Stats() ReferenceLoadStats {
	return t.stats
}

func (t *ReferenceTable) rowNCM(row []string) (string, bool) {
	if t.columns.NCM >= 0 {
		if ncm, ok := NormalizeNCM(cell(row, t.columns.NCM)); ok {
			return ncm, true
		}
	}

	if t.columns.Chapter >= 0 && t.columns.Item >= 0 {
		return synthesizeNCM(cell(row, t.columns.Chapter), cell(row, t.columns.Item))
	}

	return "", false
}

// NormalizeNCM strips separators, left-pads to 8 digits and truncates to 8
func NormalizeNCM(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return "", false
	}

	cleaned := strings.NewReplacer(".", "", "-", "", " ", "").Replace(raw)
	if cleaned == "" {
		return "", false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	if len(cleaned) < 8 {
		cleaned = strings.Repeat("0", 8-len(cleaned)) + cleaned
	}
	return cleaned[:8], true
}

// synthesizeNCM builds an NCM from chapter and item, each zero-padded to 4 digits
func synthesizeNCM(chapter, item string) (string, bool) {
	c, ok := wholeNumber(chapter)
	if !ok {
		return "", false
	}
	i, ok := wholeNumber(item)
	if !ok {
		return "", false
	}

	ncm := fmt.Sprintf("%04d%04d", c, i)
	if len(ncm) != 8 {
		return "", false
	}
	return ncm, true
}

// wholeNumber reads spreadsheet numbers such as "8471" or "8471.0"
func wholeNumber(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !models.IsPlainNumber(s) {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return d.IntPart(), true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
