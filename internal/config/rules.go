package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"remanejo/internal/core"
	"remanejo/internal/realloc"
)

// RulesFile is the YAML form of the reallocation rules. Absent keys keep
// the defaults.
//
//	prohibited_fund: 761        # or none
//	prohibited_natures: ["339018", "339092"]
//	reserve_pct: 0.20
//	max_per_operation_pct: 0.40
//	prefer_single_donor: true
type RulesFile struct {
	ProhibitedFund     *FundSetting `yaml:"prohibited_fund"`
	ProhibitedNatures  []string     `yaml:"prohibited_natures"`
	ReservePct         *Percent     `yaml:"reserve_pct"`
	MaxPerOperationPct *Percent     `yaml:"max_per_operation_pct"`
	PreferSingleDonor  *bool        `yaml:"prefer_single_donor"`
}

// FundSetting decodes a fund code or "none".
type FundSetting struct {
	Code core.FundCode
}

func (f *FundSetting) UnmarshalYAML(value *yaml.Node) error {
	code, err := realloc.ParseProhibitedFund(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	f.Code = code
	return nil
}

// Percent decodes a fraction exactly, without going through float64.
type Percent struct {
	Value decimal.Decimal
}

func (p *Percent) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", value.Line, value.Value)
	}
	p.Value = d
	return nil
}

// LoadRulesFile reads and decodes a rules file.
func LoadRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules. Unknown keys are rejected.
func ParseRules(data []byte) (*RulesFile, error) {
	var rf RulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return &rf, nil
}

// Apply overwrites the fields of cfg that the file sets.
func (rf *RulesFile) Apply(cfg *realloc.Config) {
	if rf.ProhibitedFund != nil {
		cfg.ProhibitedFund = rf.ProhibitedFund.Code
	}
	if rf.ProhibitedNatures != nil {
		cfg.ProhibitedNatures = realloc.NewCodeSet(rf.ProhibitedNatures...)
	}
	if rf.ReservePct != nil {
		cfg.ReservePct = rf.ReservePct.Value
	}
	if rf.MaxPerOperationPct != nil {
		cfg.MaxPerOperationPct = rf.MaxPerOperationPct.Value
	}
	if rf.PreferSingleDonor != nil {
		cfg.PreferSingleDonor = *rf.PreferSingleDonor
	}
}
