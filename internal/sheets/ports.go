package sheets

import "context"

// Ports for inbound budget adapters.
type (
	// BudgetSource yields the raw cell grid of a budget sheet, one slice per
	// row, cells rendered as text. Rows may have different lengths.
	BudgetSource interface {
		// Name identifies the source in logs, history and output file names.
		Name() string
		ReadGrid(ctx context.Context) ([][]string, error)
	}
)
