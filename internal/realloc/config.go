package realloc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"remanejo/internal/core"
)

var (
	DefaultReservePct         = decimal.RequireFromString("0.20")
	DefaultMaxPerOperationPct = decimal.RequireFromString("0.40")

	// DefaultProhibitedFund is the fund that never takes part in transfers
	// unless the caller says otherwise.
	DefaultProhibitedFund core.FundCode = 761

	// DefaultProhibitedNatures are the natures each unit keeps responsibility for.
	DefaultProhibitedNatures = []string{"339018", "339092", "319092", "339047", "339048", "319096", "339093", "339091"}
)

// CodeSet is a set of normalized nature codes.
type CodeSet map[string]struct{}

// NewCodeSet normalizes and collects the given codes, ignoring blanks.
func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		c = core.NormalizeCode(c)
		if c == "" {
			continue
		}
		s[c] = struct{}{}
	}
	return s
}

// ParseCodeList splits a comma, semicolon or newline separated list.
func ParseCodeList(s string) CodeSet {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	return NewCodeSet(fields...)
}

func (s CodeSet) Contains(code string) bool {
	_, ok := s[core.NormalizeCode(code)]
	return ok
}

// Sorted returns the codes in ascending order.
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ParseProhibitedFund reads a prohibited fund setting: a positive fund code,
// or "none" (also "" and "0") to disable the fund restriction.
func ParseProhibitedFund(s string) (core.FundCode, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "0":
		return core.NoFund, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return core.NoFund, fmt.Errorf("prohibited fund %q must be a positive integer or \"none\"", s)
	}
	return core.FundCode(n), nil
}

// Config holds the reallocation rules of one run.
type Config struct {
	ProhibitedFund     core.FundCode
	ProhibitedNatures  CodeSet
	ReservePct         decimal.Decimal
	MaxPerOperationPct decimal.Decimal
	PreferSingleDonor  bool
}

// DefaultConfig returns the rules used by the budget office: fund 761 and
// the payroll/benefit natures excluded, 20% reserve, 40% per transfer,
// single donor preferred. The fund and nature lists are the office's
// standing choices, the same ones its upload form starts from; the engine
// itself needs no exclusions, so callers wanting an unrestricted run clear
// ProhibitedFund and ProhibitedNatures.
func DefaultConfig() Config {
	return Config{
		ProhibitedFund:     DefaultProhibitedFund,
		ProhibitedNatures:  NewCodeSet(DefaultProhibitedNatures...),
		ReservePct:         DefaultReservePct,
		MaxPerOperationPct: DefaultMaxPerOperationPct,
		PreferSingleDonor:  true,
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var problems []string
	one := decimal.NewFromInt(1)
	if c.ReservePct.IsNegative() || c.ReservePct.GreaterThanOrEqual(one) {
		problems = append(problems, fmt.Sprintf("reserve percentage %s must be in [0, 1)", c.ReservePct))
	}
	if !c.MaxPerOperationPct.IsPositive() || c.MaxPerOperationPct.GreaterThan(one) {
		problems = append(problems, fmt.Sprintf("max per operation percentage %s must be in (0, 1]", c.MaxPerOperationPct))
	}
	if c.ProhibitedFund < 0 {
		problems = append(problems, fmt.Sprintf("prohibited fund %d must not be negative", c.ProhibitedFund))
	}
	for _, code := range c.ProhibitedNatures.Sorted() {
		if err := core.ValidateCode(code); err != nil {
			problems = append(problems, fmt.Sprintf("prohibited nature %q: %v", code, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid reallocation rules:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// IsProhibitedFund reports whether f is the configured prohibited fund. An
// unset prohibited fund matches nothing, including fund-less units.
func (c Config) IsProhibitedFund(f core.FundCode) bool {
	return c.ProhibitedFund.IsSet() && f == c.ProhibitedFund
}

// IsProhibitedNature reports whether the code is in the prohibited set.
func (c Config) IsProhibitedNature(code string) bool {
	return c.ProhibitedNatures.Contains(code)
}

// Excluded reports whether the nature may neither donate nor receive.
func (c Config) Excluded(n core.Nature) bool {
	return c.IsProhibitedFund(n.Fund) || c.IsProhibitedNature(n.Code)
}
