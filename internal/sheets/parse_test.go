package sheets_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
	"remanejo/internal/realloc"
	"remanejo/internal/sheets"
	"remanejo/internal/sheets/memory"
	"remanejo/internal/trace"
)

func TestIsBalanceHeader(t *testing.T) {
	tests := []struct {
		cell string
		want bool
	}{
		{"7- Previsão Orçamentária", true},
		{"  7 - PREVISÃO ORÇAMENTÁRIA ", true},
		{"7- Budget forecast", true},
		{"7- Empenhado", false},
		{"Previsão 7-", false},
		{"17- Previsão", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sheets.IsBalanceHeader(tt.cell), tt.cell)
	}
}

func TestFindBalanceColumn(t *testing.T) {
	rows := [][]string{{"title"}, {"Fonte", "UG", "5- Dotação", "6- Empenho", "7- Previsão"}}
	col, err := sheets.FindBalanceColumn(rows)
	require.NoError(t, err)
	assert.Equal(t, 4, col)

	late := make([][]string, 10)
	late = append(late, []string{"7- Previsão"})
	_, err = sheets.FindBalanceColumn(late)
	assert.ErrorIs(t, err, sheets.ErrBalanceColumnNotFound)
}

func TestParseLabel(t *testing.T) {
	l, ok := sheets.ParseLabel(" 450201 - DETRAN ")
	require.True(t, ok)
	assert.Equal(t, "450201", l.Code)
	assert.Equal(t, "DETRAN", l.Name)
	assert.True(t, l.IsUnit())

	l, ok = sheets.ParseLabel("319011-Vencimentos e Vantagens")
	require.True(t, ok)
	assert.False(t, l.IsUnit())

	for _, bad := range []string{"31901 - x", "Total", "3190111 - x", "450201 -"} {
		_, ok := sheets.ParseLabel(bad)
		assert.False(t, ok, bad)
	}
}

func TestParse(t *testing.T) {
	rows := memory.NewBudget().
		Nature(0, "339030", "Orphan", "10").
		Unit(500, "450201", "ALPHA", "800").
		Nature(0, "319011", "Vencimentos", "1000").
		Nature(761, "339039", "Serviços", "-200,50").
		Row("", "Subtotal", "799.5").
		Nature(0, "339040", "Locação", "n/a").
		Unit(0, "450202", "BETA", "").
		Nature(0, "339030", "Material", "1.5e2").
		Rows()

	tr := trace.New(nil)
	l, err := sheets.Parse(rows, tr)
	require.NoError(t, err)

	require.Equal(t, 2, l.UnitCount())
	alpha := l.Unit(0)
	assert.Equal(t, "450201", alpha.Code)
	assert.Equal(t, core.FundCode(500), alpha.Fund)
	assert.Equal(t, "800", alpha.Total.String())
	assert.Equal(t, 4, alpha.Row)

	natures := l.Natures(0)
	require.Len(t, natures, 3)
	pay := l.Nature(natures[0])
	assert.Equal(t, core.FundCode(500), pay.Fund, "inherited from the unit")
	assert.Equal(t, "31", pay.Prefix)
	svc := l.Nature(natures[1])
	assert.Equal(t, core.FundCode(761), svc.Fund)
	assert.Equal(t, "-200.5", svc.Original.String())
	assert.True(t, l.Nature(natures[2]).Original.IsZero())

	beta := l.Unit(1)
	assert.False(t, beta.Fund.IsSet())
	assert.Equal(t, "150", l.Nature(l.Natures(1)[0]).Original.String())

	transcript := tr.Transcript()
	assert.Contains(t, transcript, "balance column found column=C")
	assert.Contains(t, transcript, "nature without unit skipped")
	assert.Contains(t, transcript, "malformed amount read as zero")
}

func TestParseFatalErrors(t *testing.T) {
	_, err := sheets.Parse([][]string{{"", "450201 - ALPHA", "1"}}, nil)
	assert.ErrorIs(t, err, sheets.ErrBalanceColumnNotFound)

	rows := memory.NewBudget().Nature(0, "339030", "Material", "10").Rows()
	_, err = sheets.Parse(rows, nil)
	assert.ErrorIs(t, err, sheets.ErrNoUnits)
}

func TestParseSkipsDuplicateUnits(t *testing.T) {
	rows := memory.NewBudget().
		Unit(500, "450201", "ALPHA", "0").
		Nature(0, "339030", "Material", "10").
		Unit(500, "450201", "ALPHA", "0").
		Nature(0, "339039", "Serviços", "5").
		Rows()
	tr := trace.New(nil)
	l, err := sheets.Parse(rows, tr)
	require.NoError(t, err)
	assert.Equal(t, 1, l.UnitCount())
	assert.Equal(t, 1, l.NatureCount())
	assert.Equal(t, 2, tr.Count(trace.LevelWarn))
}

func TestParseKeepsRepeatedNatureOnAnotherFund(t *testing.T) {
	rows := memory.NewBudget().
		Unit(500, "450201", "ALPHA", "2700").
		Nature(500, "339030", "Material", "1000").
		Nature(501, "339030", "Material", "-300").
		Nature(500, "339039", "Serviços", "2000").
		Rows()
	l, err := sheets.Parse(rows, nil)
	require.NoError(t, err)
	require.Equal(t, 3, l.NatureCount())

	refs := l.Natures(0)
	assert.Equal(t, core.FundCode(500), l.Nature(refs[0]).Fund)
	second := l.Nature(refs[1])
	assert.Equal(t, "339030", second.Code)
	assert.Equal(t, core.FundCode(501), second.Fund)
	assert.True(t, second.Original.Equal(decimal.RequireFromString("-300")))

	res, err := realloc.Execute(l, realloc.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Deficits)
	require.Len(t, res.Deficits, 1)
	assert.Equal(t, core.FundCode(501), res.Deficits[0].Fund)
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, "300", res.Transfers[0].Amount.String())
	assert.Equal(t, "339030", res.Transfers[0].DestNatureCode)
	assert.True(t, l.Nature(refs[1]).Current.IsZero())
	assert.True(t, res.Validation.NoNegativeBalance)
	assert.Empty(t, res.Validation.ConsistencyErrors)

	var rendered int
	for _, b := range res.Balances {
		rendered += len(b.Natures)
	}
	assert.Equal(t, 3, rendered)
}
