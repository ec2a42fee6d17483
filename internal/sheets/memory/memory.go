// Package memory provides an in-process budget source and a small builder
// for grids laid out like the budget office export.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "remanejo/internal/sheets"
)

// Source serves a fixed grid.
type Source struct {
	mu   sync.Mutex
	name string
	rows [][]string
}

var _ ports.BudgetSource = (*Source)(nil)

func New(name string, rows [][]string) *Source {
	return &Source{name: name, rows: copyRows(rows)}
}

func (s *Source) Name() string { return s.name }

// ReadGrid returns a copy of the grid.
func (s *Source) ReadGrid(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.rows), nil
}

func copyRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Budget builds a grid with the fund in column A, the label in column B and
// the balance in column C under the forecast header.
type Budget struct {
	rows [][]string
}

// NewBudget starts a grid with a title row and the header row.
func NewBudget() *Budget {
	return &Budget{rows: [][]string{
		{"", "Relatório de execução orçamentária"},
		{"Fonte", "UG / Natureza", "7- Previsão Orçamentária"},
	}}
}

// Unit appends a unit row. A zero fund leaves the cell blank.
func (b *Budget) Unit(fund int, code, name, total string) *Budget {
	b.rows = append(b.rows, []string{fundCell(fund), fmt.Sprintf("%s - %s", code, name), total})
	return b
}

// Nature appends a nature row under the latest unit.
func (b *Budget) Nature(fund int, code, name, balance string) *Budget {
	b.rows = append(b.rows, []string{fundCell(fund), fmt.Sprintf("%s - %s", code, name), balance})
	return b
}

// Row appends a raw row.
func (b *Budget) Row(cells ...string) *Budget {
	b.rows = append(b.rows, cells)
	return b
}

func (b *Budget) Rows() [][]string {
	return copyRows(b.rows)
}

// Source wraps the grid as a named budget source.
func (b *Budget) Source(name string) *Source {
	return New(name, b.rows)
}

func fundCell(fund int) string {
	if fund <= 0 {
		return ""
	}
	return fmt.Sprint(fund)
}
