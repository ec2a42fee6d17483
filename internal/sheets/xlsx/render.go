package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"remanejo/internal/core"
	"remanejo/internal/realloc"
)

const (
	BalancesSheet  = "Saldos Ajustados"
	TransfersSheet = "Remanejamentos"

	headerColor = "366092"
	maxColWidth = 60
)

var (
	balanceHeader = []string{"Fonte", "UG", "Nome UG", "Tipo", "Natureza", "Nome Natureza", "Saldo Original", "Saldo Ajustado"}
	transferHeader = []string{"Tipo", "Fonte", "UG Origem", "Natureza Origem", "Nome Natureza Origem",
		"UG Destino", "Natureza Destino", "Nome Natureza Destino", "Valor"}
)

// Render builds the output workbook: adjusted balances per unit and nature,
// then the consolidated transfers. The caller closes the returned file.
func Render(res *realloc.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), BalancesSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(TransfersSheet); err != nil {
		f.Close()
		return nil, err
	}

	balances := [][]any{toAny(balanceHeader)}
	for _, u := range res.Balances {
		balances = append(balances, []any{
			fundValue(u.Fund), u.Code, u.Name, "TOTAL", "", "",
			money(u.Original), money(u.Adjusted),
		})
		for _, n := range u.Natures {
			balances = append(balances, []any{
				fundValue(n.Fund), "", "", "Natureza", n.Code, n.Name,
				money(n.Original), money(n.Adjusted),
			})
		}
	}

	transfers := [][]any{toAny(transferHeader)}
	for _, t := range res.Consolidated {
		transfers = append(transfers, []any{
			string(t.Kind), fundValue(t.Fund), t.SourceUnitCode, t.SourceNatureCode, t.SourceNatureName,
			t.DestUnitCode, t.DestNatureCode, t.DestNatureName, money(t.Amount),
		})
	}

	for _, s := range []struct {
		name string
		rows [][]any
	}{{BalancesSheet, balances}, {TransfersSheet, transfers}} {
		if err := writeSheet(f, s.name, s.rows); err != nil {
			f.Close()
			return nil, fmt.Errorf("render %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders res and writes the workbook to w.
func Write(w io.Writer, res *realloc.Result) error {
	f, err := Render(res)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// Bytes renders res into an in-memory workbook.
func Bytes(res *realloc.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	widths := make([]int, len(rows[0]))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		for c, v := range row {
			if c < len(widths) {
				widths[c] = max(widths[c], utf8.RuneCountInString(fmt.Sprint(v)))
			}
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return err
	}
	body, err := f.NewStyle(&excelize.Style{Border: thinBorder()})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	if len(rows) > 1 {
		end, err := excelize.CoordinatesToCellName(len(rows[0]), len(rows))
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A2", end, body); err != nil {
			return err
		}
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(min(w+2, maxColWidth))); err != nil {
			return err
		}
	}
	return nil
}

func thinBorder() []excelize.Border {
	var out []excelize.Border
	for _, side := range []string{"left", "right", "top", "bottom"} {
		out = append(out, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// money writes amounts as numbers rounded to cents.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func fundValue(f core.FundCode) any {
	if !f.IsSet() {
		return ""
	}
	return int(f)
}

// GridBytes writes rows as text cells of a single-sheet workbook.
func GridBytes(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := toAny(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
