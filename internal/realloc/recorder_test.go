package realloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
	"remanejo/internal/trace"
)

func recorderFixture(t *testing.T) *Run {
	t.Helper()
	l := buildLedger(t,
		unitFixture{code: "450201", name: "ALPHA", fund: 500, natures: []nat{
			{code: "319011", name: "Pay", balance: "1000"},
			{code: "339030", name: "Material", balance: "-300"},
			{code: "339018", name: "Services", balance: "-50"},
			{code: "339039", name: "Other", balance: "0"},
			{code: "449052", name: "Equipment", balance: "500", fund: 761},
		}},
	)
	cfg := DefaultConfig()
	return NewRun(l, cfg, trace.New(nil))
}

func TestCommitApplies(t *testing.T) {
	run := recorderFixture(t)
	src, _ := natureAt(t, run.Ledger, "450201", "319011")
	dst, _ := natureAt(t, run.Ledger, "450201", "339030")

	got, reason := run.Commit(src, dst, dec("120.456"), core.KindInternal)
	require.Equal(t, Committed, reason)
	assert.True(t, dec("120.45").Equal(got))

	assert.True(t, dec("879.55").Equal(run.Ledger.Nature(src).Current))
	assert.True(t, dec("-179.55").Equal(run.Ledger.Nature(dst).Current))
	assert.True(t, dec("179.55").Equal(run.Ledger.Nature(dst).Necessity))

	require.Len(t, run.Transfers, 1)
	rec := run.Transfers[0]
	assert.Equal(t, core.KindInternal, rec.Kind)
	assert.Equal(t, core.FundCode(500), rec.Fund)
	assert.Equal(t, "319011", rec.SourceNatureCode)
	assert.Equal(t, "Material", rec.DestNatureName)
	assert.True(t, dec("120.45").Equal(rec.Amount))
	assert.NoError(t, rec.Validate())
}

func TestCommitCoversThirdDecimalToTheCent(t *testing.T) {
	l := buildLedger(t, unitFixture{code: "450201", name: "ALPHA", fund: 500, natures: []nat{
		{code: "319011", name: "Pay", balance: "1000"},
		{code: "339030", name: "Material", balance: "-100.333"},
	}})
	res, err := Execute(l, DefaultConfig(), nil)
	require.NoError(t, err)

	require.Len(t, res.Transfers, 1)
	assert.Equal(t, "100.33", res.Transfers[0].Amount.String())
	_, material := natureAt(t, l, "450201", "339030")
	assert.Equal(t, "-0.003", material.Current.String())
	assert.True(t, res.Validation.NoNegativeBalance)
	assert.Empty(t, res.Validation.ConsistencyErrors)
}

func TestCommitRejections(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		dst    string
		amount string
		want   RejectReason
	}{
		{"source started negative", "339030", "339030", "10", RejectNotDonor},
		{"source started at zero", "339039", "339030", "10", RejectNotDonor},
		{"destination not a deficit", "319011", "339039", "10", RejectNotReceiver},
		{"zero amount", "319011", "339030", "0", RejectNonPositive},
		{"below a cent", "319011", "339030", "0.009", RejectNonPositive},
		{"more than balance", "319011", "339030", "1000.01", RejectInsufficientFunds},
		{"breaches reserve", "319011", "339030", "800.01", RejectReserve},
		{"prohibited destination nature", "319011", "339018", "10", RejectProhibitedNature},
		{"prohibited source fund", "449052", "339030", "10", RejectProhibitedFund},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := recorderFixture(t)
			src, before := natureAt(t, run.Ledger, "450201", tt.src)
			dst, _ := natureAt(t, run.Ledger, "450201", tt.dst)

			got, reason := run.Commit(src, dst, dec(tt.amount), core.KindInternal)
			assert.Equal(t, tt.want, reason)
			assert.True(t, got.IsZero())
			assert.Empty(t, run.Transfers)
			assert.True(t, before.Current.Equal(run.Ledger.Nature(src).Current))
			assert.Equal(t, 1, run.Trace.Count(trace.LevelReject))
		})
	}
}

func TestCommitAllowsExactReserve(t *testing.T) {
	run := recorderFixture(t)
	src, _ := natureAt(t, run.Ledger, "450201", "319011")
	dst, _ := natureAt(t, run.Ledger, "450201", "339030")

	got, reason := run.Commit(src, dst, dec("800"), core.KindInternal)
	require.Equal(t, Committed, reason)
	assert.True(t, dec("800").Equal(got))
	assert.True(t, dec("200").Equal(run.Ledger.Nature(src).Current))
	assert.True(t, run.Ledger.Nature(dst).Necessity.IsZero())
}
