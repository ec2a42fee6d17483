package realloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
	"remanejo/internal/trace"
)

func record(kind core.TransferKind, fund core.FundCode, src, dst, amount string) core.TransferRecord {
	return core.TransferRecord{
		Kind:             kind,
		Fund:             fund,
		SourceUnitCode:   src[:6],
		SourceNatureCode: src[7:],
		SourceNatureName: "from " + src,
		DestUnitCode:     dst[:6],
		DestNatureCode:   dst[7:],
		DestNatureName:   "to " + dst,
		Amount:           dec(amount),
	}
}

func TestConsolidate(t *testing.T) {
	records := []core.TransferRecord{
		record(core.KindInternalSamePrefix, 500, "450201/339030", "450201/339039", "100.10"),
		record(core.KindExternal, 500, "450202/449052", "450201/339039", "50.00"),
		record(core.KindInternal, 500, "450201/339030", "450201/339039", "0.25"),
		record(core.KindInternal, 600, "450201/339030", "450201/339039", "1.00"),
		record(core.KindExternal, 500, "450202/449052", "450201/339039", "49.99"),
	}
	tr := trace.New(nil)
	out := Consolidate(records, tr)

	require.Len(t, out, 3)
	assert.Equal(t, core.KindInternalSamePrefix, out[0].Kind, "first record's kind is kept")
	assert.Equal(t, "100.35", out[0].Amount.StringFixed(2))
	assert.Equal(t, "99.99", out[1].Amount.StringFixed(2))
	assert.Equal(t, core.FundCode(600), out[2].Fund)

	before, after := dec("0"), dec("0")
	for _, r := range records {
		before = before.Add(r.Amount)
	}
	for _, r := range out {
		after = after.Add(r.Amount)
	}
	assert.True(t, before.Equal(after))
	assert.Equal(t, "100.10", records[0].Amount.StringFixed(2), "input records are not modified")
	assert.Contains(t, tr.Transcript(), "before=5 after=3")
}

func TestConsolidateEmpty(t *testing.T) {
	assert.Empty(t, Consolidate(nil, nil))
}
