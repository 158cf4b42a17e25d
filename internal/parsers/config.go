package parsers

import (
	"fmt"
	"sort"
	"strings"
)

// Reference table targets a column can be resolved to
const (
	ColumnNCM            = "ncm"
	ColumnChapter        = "chapter"
	ColumnItem           = "item"
	ColumnMarkup         = "markup"
	ColumnAdjustedMarkup = "adjusted_markup"
	ColumnEntryRate      = "entry_rate"
)

var knownColumns = map[string]bool{
	ColumnNCM:            true,
	ColumnChapter:        true,
	ColumnItem:           true,
	ColumnMarkup:         true,
	ColumnAdjustedMarkup: true,
	ColumnEntryRate:      true,
}

// ReferenceConfig holds options for loading a reference table
type ReferenceConfig struct {
	// Sheet selects the workbook sheet; empty means the first one.
	Sheet string `json:"sheet,omitempty" mapstructure:"sheet"`
	// Delimiter for CSV sources; zero means detect from the header line.
	Delimiter rune `json:"delimiter,omitempty" mapstructure:"delimiter"`
	// ColumnAliases maps a target (ncm, markup, ...) to an exact header name,
	// taking precedence over the name rules.
	ColumnAliases map[string]string `json:"column_aliases,omitempty" mapstructure:"columns"`
}

// DefaultReferenceConfig returns a configuration that relies on name rules only
func DefaultReferenceConfig() *ReferenceConfig {
	return &ReferenceConfig{
		ColumnAliases: make(map[string]string),
	}
}

// Validate checks if the reference configuration is valid
func (rc *ReferenceConfig) Validate() error {
	switch rc.Delimiter {
	case 0, ',', ';', '\t', '|':
	default:
		return fmt.Errorf("unsupported delimiter %q", rc.Delimiter)
	}

	for target, header := range rc.ColumnAliases {
		if !knownColumns[target] {
			return fmt.Errorf("unknown column target %q (known: %s)", target, strings.Join(KnownColumnTargets(), ", "))
		}
		if strings.TrimSpace(header) == "" {
			return fmt.Errorf("column alias for %q cannot be empty", target)
		}
	}

	return nil
}

// GetColumnName returns the aliased header for a target, or "" when none is configured
func (rc *ReferenceConfig) GetColumnName(target string) string {
	if rc == nil {
		return ""
	}
	return rc.ColumnAliases[target]
}

// KnownColumnTargets lists the targets accepted in ColumnAliases
func KnownColumnTargets() []string {
	targets := make([]string, 0, len(knownColumns))
	for target := range knownColumns {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}
