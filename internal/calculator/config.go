// Package calculator recomputes PIS/COFINS bases after excluding ICMS-ST.
//
// Each C870 transaction is mapped to exactly one outcome. Eligibility is
// decided in a fixed order (CFOP, NCM, reference entry, markup) and the
// first failing check names the skip reason. Eligible records get:
//
//	exclusion = basis × markup% × rate%
//	new basis = round2(basis − exclusion), clamped at zero
//	new amount = round2(new basis × record rate / 100)
//	credit = original amount − new amount
//
// All arithmetic is done with shopspring/decimal and rounded half away
// from zero to two places.
//
// Example usage:
//
//	calc, err := calculator.New(table, calculator.DefaultConfig())
//	outcome := calc.Calculate(record, parser.NCMForItem(record.ItemCode))
package calculator

import (
	"fmt"
	"sort"
	"strings"
)

// KnownCFOPs describes the operation codes usually selected for the exclusion
var KnownCFOPs = map[string]string{
	"5405": "Venda ST Substituído",
	"5403": "Venda ST Substituto",
	"5401": "Venda Produção ST",
	"5102": "Venda Revenda",
}

// DefaultEligibleCFOP is used when no CFOP is configured
const DefaultEligibleCFOP = "5405"

// Config holds calculator options
type Config struct {
	EligibleCFOPs []string `json:"eligible_cfops" mapstructure:"cfops"`
}

// DefaultConfig returns a configuration eligible for CFOP 5405 only
func DefaultConfig() *Config {
	return &Config{
		EligibleCFOPs: []string{DefaultEligibleCFOP},
	}
}

// Validate checks if the calculator configuration is valid
func (c *Config) Validate() error {
	if len(c.EligibleCFOPs) == 0 {
		return fmt.Errorf("at least one eligible CFOP is required")
	}

	for _, cfop := range c.EligibleCFOPs {
		cfop = strings.TrimSpace(cfop)
		if len(cfop) != 4 {
			return fmt.Errorf("invalid CFOP %q: must have 4 digits", cfop)
		}
		for _, r := range cfop {
			if r < '0' || r > '9' {
				return fmt.Errorf("invalid CFOP %q: must have 4 digits", cfop)
			}
		}
	}

	return nil
}

// EligibleSet returns the configured CFOPs as a set
func (c *Config) EligibleSet() map[string]bool {
	set := make(map[string]bool, len(c.EligibleCFOPs))
	for _, cfop := range c.EligibleCFOPs {
		set[strings.TrimSpace(cfop)] = true
	}
	return set
}

// SortedCFOPs returns the eligible CFOPs in ascending order without duplicates
func (c *Config) SortedCFOPs() []string {
	set := c.EligibleSet()
	cfops := make([]string, 0, len(set))
	for cfop := range set {
		cfops = append(cfops, cfop)
	}
	sort.Strings(cfops)
	return cfops
}
