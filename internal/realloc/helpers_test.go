package realloc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
	"remanejo/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type nat struct {
	code    string
	name    string
	balance string
	fund    core.FundCode
}

type unitFixture struct {
	code    string
	name    string
	fund    core.FundCode
	natures []nat
}

func buildLedger(t *testing.T, units ...unitFixture) *ledger.Ledger {
	t.Helper()
	l := ledger.New()
	for _, u := range units {
		total := decimal.Zero
		for _, n := range u.natures {
			total = total.Add(dec(n.balance))
		}
		idx, err := l.AddUnit(core.Unit{Code: u.code, Name: u.name, Fund: u.fund, Total: total})
		require.NoError(t, err)
		for _, n := range u.natures {
			_, err := l.AddNature(idx, core.Nature{Code: n.code, Name: n.name, Fund: n.fund, Original: dec(n.balance)})
			require.NoError(t, err)
		}
	}
	return l
}

// natureAt finds a nature by unit and code.
func natureAt(t *testing.T, l *ledger.Ledger, unit, code string) (ledger.NatureRef, core.Nature) {
	t.Helper()
	u, ok := l.UnitByCode(unit)
	require.True(t, ok, "unit %s", unit)
	for _, ref := range l.Natures(u) {
		if n := l.Nature(ref); n.Code == code {
			return ref, n
		}
	}
	t.Fatalf("nature %s/%s not found", unit, code)
	return ledger.NatureRef{}, core.Nature{}
}

// openConfig is the default configuration without prohibited natures.
func openConfig() Config {
	cfg := DefaultConfig()
	cfg.ProhibitedNatures = NewCodeSet()
	return cfg
}
