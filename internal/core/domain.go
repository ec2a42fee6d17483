package core

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	KindInternalSingle     TransferKind = "interna-única"
	KindInternalSamePrefix TransferKind = "interna-mesmos-dígitos"
	KindInternal           TransferKind = "interna"
	KindExternalSamePrefix TransferKind = "externa-mesmos-dígitos"
	KindExternal           TransferKind = "externa"

	// NoFund marks a unit or nature without a fund code.
	NoFund FundCode = 0
)

type (
	TransferKind string

	// FundCode identifies a funding source. Zero means "none".
	FundCode int

	Unit struct {
		Code  string
		Name  string
		Fund  FundCode
		Total decimal.Decimal // total balance as parsed from the sheet
		Row   int             // 1-based row in the source sheet
	}

	Nature struct {
		Code     string
		Name     string
		UnitCode string
		Fund     FundCode // own fund, or inherited from the unit
		Prefix   string   // first two digits of Code
		Original decimal.Decimal
		Current  decimal.Decimal
		// Necessity is the part of the original deficit still uncovered.
		Necessity decimal.Decimal
		Row       int
	}

	// TransferRecord is an immutable audit line for one committed transfer.
	TransferRecord struct {
		Kind             TransferKind    `json:"kind"`
		Fund             FundCode        `json:"fund"`
		SourceUnitCode   string          `json:"source_unit"`
		SourceNatureCode string          `json:"source_nature"`
		SourceNatureName string          `json:"source_nature_name"`
		DestUnitCode     string          `json:"dest_unit"`
		DestNatureCode   string          `json:"dest_nature"`
		DestNatureName   string          `json:"dest_nature_name"`
		Amount           decimal.Decimal `json:"amount"`
	}

	// Deficit is a nature discovered with a negative original balance.
	// Prohibited deficits are listed but stay with the unit.
	Deficit struct {
		UnitCode   string          `json:"unit"`
		UnitName   string          `json:"unit_name"`
		Fund       FundCode        `json:"fund"`
		NatureCode string          `json:"nature"`
		NatureName string          `json:"nature_name"`
		Amount     decimal.Decimal `json:"amount"`
		Prohibited bool            `json:"prohibited"`
	}
)

var (
	ErrInvalidCode   = errors.New("invalid code: expected six digits")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidAmount = errors.New("invalid amount")
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// IsSet reports whether the fund code carries a value.
func (f FundCode) IsSet() bool {
	return f > 0
}

func (f FundCode) String() string {
	if !f.IsSet() {
		return ""
	}
	return strconv.Itoa(int(f))
}

// Or returns f when set, otherwise fallback.
func (f FundCode) Or(fallback FundCode) FundCode {
	if f.IsSet() {
		return f
	}
	return fallback
}

// Internal reports whether the kind describes a transfer inside one unit.
func (k TransferKind) Internal() bool {
	switch k {
	case KindInternalSingle, KindInternalSamePrefix, KindInternal:
		return true
	}
	return false
}

// NormalizeCode strips dots and spaces, the way codes are typed by hand
// ("339.018" or "339 018").
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, ".", "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.TrimSpace(code)
}

// ValidateCode checks that a normalized code has exactly six digits.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

// CategoryPrefix returns the first two digits of a nature code.
func CategoryPrefix(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[:2]
}

func (u Unit) Validate() error {
	if err := ValidateCode(u.Code); err != nil {
		return err
	}
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (n Nature) Validate() error {
	if err := ValidateCode(n.Code); err != nil {
		return err
	}
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// IsDonorCandidate reports whether the nature started with a surplus.
func (n Nature) IsDonorCandidate() bool {
	return n.Original.IsPositive()
}

// IsReceiverCandidate reports whether the nature started with a deficit.
func (n Nature) IsReceiverCandidate() bool {
	return n.Original.IsNegative()
}

// Validate checks the record invariants; Commit refuses records that fail it.
func (r TransferRecord) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := ValidateCode(r.SourceNatureCode); err != nil {
		return err
	}
	return ValidateCode(r.DestNatureCode)
}
