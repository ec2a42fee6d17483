// Package sheets turns a budget spreadsheet grid into a ledger.
//
// The grid layout is the one exported by the budget office: column A holds
// the fund, column B a "NNNNNN - Name" label and the balance sits under a
// "7- Previsão Orçamentária" header found in the first rows. Labels whose
// name is entirely upper case open a new unit; any other label is a nature
// of the latest unit.
package sheets

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
	"remanejo/internal/trace"
)

const (
	FundColumn  = 0
	LabelColumn = 1

	// headerScanRows bounds the search for the balance header.
	headerScanRows = 10
)

var (
	ErrBalanceColumnNotFound = errors.New("balance column not found: expected a header starting with \"7-\" and containing \"previsão\"")
	ErrNoUnits               = errors.New("no units found in sheet")
)

var labelPattern = regexp.MustCompile(`^(\d{6})\s*-\s*(.+)$`)

// FindBalanceColumn returns the index of the first cell, within the first
// rows, whose text starts with "7-" or "7 -" and names the forecast.
func FindBalanceColumn(rows [][]string) (int, error) {
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		for c, cell := range rows[r] {
			if IsBalanceHeader(cell) {
				return c, nil
			}
		}
	}
	return 0, ErrBalanceColumnNotFound
}

func IsBalanceHeader(cell string) bool {
	v := strings.ToLower(strings.TrimSpace(cell))
	if !strings.HasPrefix(v, "7-") && !strings.HasPrefix(v, "7 -") {
		return false
	}
	return strings.Contains(v, "previsão") || strings.Contains(v, "forecast")
}

// Label is a parsed "code - name" cell.
type Label struct {
	Code string
	Name string
}

// ParseLabel matches a label cell. ok is false for anything else.
func ParseLabel(cell string) (Label, bool) {
	m := labelPattern.FindStringSubmatch(strings.TrimSpace(cell))
	if m == nil {
		return Label{}, false
	}
	return Label{Code: m[1], Name: strings.TrimSpace(m[2])}, true
}

// IsUnit reports whether the label names a unit: its name has no lower-case
// letters. A nature named with an acronym only is misread as a unit.
func (l Label) IsUnit() bool {
	return l.Name == strings.ToUpper(l.Name)
}

// Parse builds the ledger of one run from a grid. Malformed numbers read as
// zero and unmatched rows are skipped; both are recorded on tr. A missing
// balance header or a sheet without units is fatal.
func Parse(rows [][]string, tr *trace.Trace) (*ledger.Ledger, error) {
	if tr == nil {
		tr = trace.New(nil)
	}
	tr.Stage("parse")

	balanceCol, err := FindBalanceColumn(rows)
	if err != nil {
		return nil, err
	}
	tr.Info("balance column found", "column", columnName(balanceCol))

	l := ledger.New()
	current := -1
	for i, row := range rows {
		label, ok := ParseLabel(cell(row, LabelColumn))
		if !ok {
			continue
		}
		line := i + 1
		fund := core.ParseFund(cell(row, FundColumn))
		balance := amount(row, balanceCol, line, tr)

		if label.IsUnit() {
			idx, err := l.AddUnit(core.Unit{Code: label.Code, Name: label.Name, Fund: fund, Total: balance, Row: line})
			if err != nil {
				tr.Warn("unit skipped", "row", line, "error", err.Error())
				current = -1
				continue
			}
			current = idx
			tr.Info("unit", "row", line, "unit", label.Code, "name", label.Name,
				"fund", fund.String(), "balance", core.FormatAmount(balance))
			continue
		}

		if current < 0 {
			tr.Warn("nature without unit skipped", "row", line, "nature", label.Code)
			continue
		}
		ref, err := l.AddNature(current, core.Nature{Code: label.Code, Name: label.Name, Fund: fund, Original: balance, Row: line})
		if err != nil {
			tr.Warn("nature skipped", "row", line, "error", err.Error())
			continue
		}
		n := l.Nature(ref)
		tr.Info("nature", "row", line, "unit", n.UnitCode, "nature", n.Code,
			"fund", n.Fund.String(), "balance", core.FormatAmount(balance))
	}

	if l.UnitCount() == 0 {
		return nil, ErrNoUnits
	}
	tr.Info("sheet parsed", "units", l.UnitCount(), "natures", l.NatureCount())
	return l, nil
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func amount(row []string, col, line int, tr *trace.Trace) decimal.Decimal {
	raw := strings.TrimSpace(cell(row, col))
	if raw == "" {
		return decimal.Zero
	}
	v, ok := core.ParseAmount(raw)
	if !ok {
		tr.Warn("malformed amount read as zero", "row", line, "value", raw)
		return decimal.Zero
	}
	return v
}

// columnName renders a zero-based column index as a spreadsheet letter.
func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = fmt.Sprintf("%c", 'A'+col%26) + name
		col = col/26 - 1
	}
	return name
}
