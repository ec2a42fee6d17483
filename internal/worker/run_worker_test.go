package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/amqp"
	"remanejo/internal/backend"
	"remanejo/internal/core"
	"remanejo/internal/realloc"
	"remanejo/internal/services"
	"remanejo/internal/sheets"
	"remanejo/internal/sheets/memory"
)

type stubSources struct {
	src sheets.BudgetSource
	err error
}

func (s stubSources) OpenSource(context.Context, string) (sheets.BudgetSource, error) {
	return s.src, s.err
}

type stubExecutor struct {
	rules     realloc.Config
	requestID string
	err       error
	calls     int
}

func (s *stubExecutor) Execute(ctx context.Context, src sheets.BudgetSource, name string, cfg realloc.Config) (*services.RunOutcome, error) {
	s.calls++
	s.rules = cfg
	s.requestID = services.RequestIDFromContext(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &services.RunOutcome{ID: "run-1", SourceName: src.Name(), Result: &realloc.Result{}}, nil
}

func budgetSource() sheets.BudgetSource {
	return memory.NewBudget().Unit(0, "450201", "UNIDADE A", "0").Source("orcamento.xlsx")
}

func TestHandleRunRequest(t *testing.T) {
	exec := &stubExecutor{}
	w := NewRunWorker(exec, stubSources{src: budgetSource()}, realloc.DefaultConfig(), nil)

	fund := 0
	req := amqp.NewRunRequest("/data/orcamento.xlsx")
	req.ProhibitedFund = &fund
	req.ProhibitedNatures = []string{"339.030"}

	require.NoError(t, w.HandleRunRequest(context.Background(), req))
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, req.ID, exec.requestID)
	assert.Equal(t, core.NoFund, exec.rules.ProhibitedFund)
	assert.Equal(t, []string{"339030"}, exec.rules.ProhibitedNatures.Sorted())
}

func TestHandleRunRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		sources stubSources
		execErr error
		wantErr bool
	}{
		{
			name:    "missing file is acknowledged",
			sources: stubSources{err: fmt.Errorf("read workbook: %w", os.ErrNotExist)},
		},
		{
			name:    "missing spreadsheet is acknowledged",
			sources: stubSources{err: backend.ErrNoSpreadsheet},
		},
		{
			name:    "transient source error is requeued",
			sources: stubSources{err: errors.New("503 backend unavailable")},
			wantErr: true,
		},
		{
			name:    "rejected budget is acknowledged",
			sources: stubSources{src: budgetSource()},
			execErr: fmt.Errorf("%w: no units found in sheet", services.ErrInvalidInput),
		},
		{
			name:    "storage failure is requeued",
			sources: stubSources{src: budgetSource()},
			execErr: errors.New("database is locked"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRunWorker(&stubExecutor{err: tt.execErr}, tt.sources, realloc.DefaultConfig(), nil)
			err := w.HandleRunRequest(context.Background(), amqp.NewRunRequest("x.xlsx"))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvalidOverridesAreAcknowledged(t *testing.T) {
	exec := &stubExecutor{}
	w := NewRunWorker(exec, stubSources{src: budgetSource()}, realloc.DefaultConfig(), nil)

	fund := -5
	req := amqp.NewRunRequest("x.xlsx")
	req.ProhibitedFund = &fund
	assert.NoError(t, w.HandleRunRequest(context.Background(), req))

	req = amqp.NewRunRequest("x.xlsx")
	req.ProhibitedNatures = []string{"12"}
	assert.NoError(t, w.HandleRunRequest(context.Background(), req))
	assert.Zero(t, exec.calls)
}

type scriptedConsumer struct {
	errs       []error
	consumes   int
	reconnects int
}

func (c *scriptedConsumer) ConsumeRunRequests(ctx context.Context, _ func(context.Context, *amqp.RunRequest) error) error {
	err := c.errs[c.consumes]
	c.consumes++
	return err
}

func (c *scriptedConsumer) Reconnect(context.Context) error {
	c.reconnects++
	return nil
}

func TestRunReconnectsOnConnectionLoss(t *testing.T) {
	w := NewRunWorker(&stubExecutor{}, stubSources{}, realloc.DefaultConfig(), nil)
	fatal := errors.New("access refused")
	c := &scriptedConsumer{errs: []error{amqp.ErrChannelClosed, amqp.ErrChannelClosed, fatal}}

	err := w.Run(context.Background(), c)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 3, c.consumes)
	assert.Equal(t, 2, c.reconnects)
}

func TestRunStopsWithContext(t *testing.T) {
	w := NewRunWorker(&stubExecutor{}, stubSources{}, realloc.DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &scriptedConsumer{errs: []error{context.Canceled}}

	assert.ErrorIs(t, w.Run(ctx, c), context.Canceled)
	assert.Zero(t, c.reconnects)
}
