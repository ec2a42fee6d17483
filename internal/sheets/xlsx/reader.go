// Package xlsx reads budget workbooks and renders reallocation results with
// excelize.
package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	ports "remanejo/internal/sheets"
)

// ErrNotWorkbook is returned when the content cannot be opened as a workbook.
var ErrNotWorkbook = errors.New("not a readable workbook")

// Workbook is a budget workbook held in memory. Only the first sheet is read.
type Workbook struct {
	name string
	data []byte
}

var _ ports.BudgetSource = (*Workbook)(nil)

// Open loads a workbook from disk.
func Open(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", path, err)
	}
	return &Workbook{name: filepath.Base(path), data: data}, nil
}

// FromReader loads a workbook from an upload or any other stream.
func FromReader(name string, r io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", name, err)
	}
	return &Workbook{name: name, data: data}, nil
}

func (w *Workbook) Name() string { return w.name }

// Bytes returns the raw workbook content.
func (w *Workbook) Bytes() []byte { return w.data }

// ReadGrid returns the cells of the first sheet. Numbers come back unformatted
// so that "1.234,56" style display formats do not leak into parsing.
func (w *Workbook) ReadGrid(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotWorkbook, w.name, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrNotWorkbook, w.name)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, w.name, err)
	}
	return rows, nil
}
