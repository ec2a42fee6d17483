package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger(t *testing.T) (*Ledger, NatureRef, NatureRef) {
	t.Helper()
	l := New()
	u, err := l.AddUnit(core.Unit{Code: "450201", Name: "ALPHA", Fund: 500, Total: dec("800")})
	require.NoError(t, err)
	donor, err := l.AddNature(u, core.Nature{Code: "319011", Name: "Pay", Original: dec("1000")})
	require.NoError(t, err)
	receiver, err := l.AddNature(u, core.Nature{Code: "339030", Name: "Svc", Fund: 501, Original: dec("-200")})
	require.NoError(t, err)
	return l, donor, receiver
}

func TestAddNatureDerivedFields(t *testing.T) {
	l, donor, receiver := newTestLedger(t)

	d := l.Nature(donor)
	assert.Equal(t, "450201", d.UnitCode)
	assert.Equal(t, core.FundCode(500), d.Fund, "fund inherited from unit")
	assert.Equal(t, "31", d.Prefix)
	assert.True(t, d.Current.Equal(d.Original))

	r := l.Nature(receiver)
	assert.Equal(t, core.FundCode(501), r.Fund, "own fund wins")
}

func TestAddUnitRejectsDuplicates(t *testing.T) {
	l := New()
	_, err := l.AddUnit(core.Unit{Code: "450201", Name: "ALPHA"})
	require.NoError(t, err)
	_, err = l.AddUnit(core.Unit{Code: "450201", Name: "AGAIN"})
	assert.ErrorIs(t, err, ErrDuplicateUnit)
	_, err = l.AddUnit(core.Unit{Code: "45", Name: "BAD"})
	assert.ErrorIs(t, err, core.ErrInvalidCode)
}

func TestAddNatureKeepsRepeatedCodes(t *testing.T) {
	l, donor, _ := newTestLedger(t)
	again, err := l.AddNature(0, core.Nature{Code: "319011", Name: "Pay", Fund: 501, Original: dec("-30")})
	require.NoError(t, err)

	assert.NotEqual(t, donor, again)
	assert.Equal(t, 3, l.NatureCount())
	assert.Equal(t, core.FundCode(500), l.Nature(donor).Fund)
	assert.Equal(t, core.FundCode(501), l.Nature(again).Fund)
	assert.True(t, l.Nature(again).Original.Equal(dec("-30")))
}

func TestAddNatureUnknownUnit(t *testing.T) {
	l, _, _ := newTestLedger(t)
	_, err := l.AddNature(7, core.Nature{Code: "319011", Name: "Pay"})
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestApplyTransfer(t *testing.T) {
	l, donor, receiver := newTestLedger(t)

	require.NoError(t, l.ApplyTransfer(donor, receiver, dec("200")))
	assert.True(t, l.Nature(donor).Current.Equal(dec("800")))
	assert.True(t, l.Nature(receiver).Current.Equal(dec("0")))
	assert.True(t, l.Nature(donor).Original.Equal(dec("1000")), "original is immutable")

	assert.ErrorIs(t, l.ApplyTransfer(donor, receiver, decimal.Zero), ErrInvalidTransfer)
	assert.ErrorIs(t, l.ApplyTransfer(donor, donor, dec("1")), ErrInvalidTransfer)
	assert.ErrorIs(t, l.ApplyTransfer(donor, NatureRef{Unit: 0, Index: 9}, dec("1")), ErrUnknownNature)
}

func TestOrderAndLookup(t *testing.T) {
	l, donor, receiver := newTestLedger(t)
	u2, err := l.AddUnit(core.Unit{Code: "450202", Name: "BETA"})
	require.NoError(t, err)
	third, err := l.AddNature(u2, core.Nature{Code: "339039", Name: "Other", Original: dec("5")})
	require.NoError(t, err)

	assert.Equal(t, []NatureRef{donor, receiver, third}, l.All())
	assert.Equal(t, 3, l.NatureCount())
	idx, ok := l.UnitByCode("450202")
	assert.True(t, ok)
	assert.Equal(t, u2, idx)
	_, ok = l.UnitByCode("999999")
	assert.False(t, ok)
}

func TestSetNecessityClampsAtZero(t *testing.T) {
	l, _, receiver := newTestLedger(t)
	l.SetNecessity(receiver, dec("-3"))
	assert.True(t, l.Nature(receiver).Necessity.IsZero())
	l.SetNecessity(receiver, dec("150"))
	assert.True(t, l.Nature(receiver).Necessity.Equal(dec("150")))
}

func TestBalances(t *testing.T) {
	l, donor, receiver := newTestLedger(t)
	require.NoError(t, l.ApplyTransfer(donor, receiver, dec("150")))

	b := l.Balances()
	require.Len(t, b, 1)
	assert.True(t, b[0].Original.Equal(dec("800")))
	assert.True(t, b[0].Adjusted.Equal(dec("800")))
	require.Len(t, b[0].Natures, 2)
	assert.True(t, b[0].Natures[1].Adjusted.Equal(dec("-50")))
}
