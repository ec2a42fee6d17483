package realloc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, core.FundCode(761), cfg.ProhibitedFund)
	assert.Len(t, cfg.ProhibitedNatures, 8)
	assert.True(t, cfg.IsProhibitedNature("339.018"))
	assert.True(t, cfg.IsProhibitedNature("339 092"))
	assert.False(t, cfg.IsProhibitedNature("339030"))
	assert.True(t, cfg.PreferSingleDonor)
}

func TestProhibitedFund(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsProhibitedFund(761))
	assert.False(t, cfg.IsProhibitedFund(500))
	assert.False(t, cfg.IsProhibitedFund(core.NoFund))

	cfg.ProhibitedFund = core.NoFund
	assert.False(t, cfg.IsProhibitedFund(761))
	assert.False(t, cfg.IsProhibitedFund(core.NoFund), "an unset prohibited fund must not match fund-less units")
}

func TestParseCodeList(t *testing.T) {
	set := ParseCodeList(" 339.018, 339092;\n319 092,,")
	assert.Equal(t, []string{"319092", "339018", "339092"}, set.Sorted())
	assert.Empty(t, ParseCodeList(""))
}

func TestConfigValidateAggregates(t *testing.T) {
	cfg := Config{
		ProhibitedFund:     -1,
		ProhibitedNatures:  NewCodeSet("12345", "339018"),
		ReservePct:         decimal.NewFromInt(1),
		MaxPerOperationPct: decimal.Zero,
	}
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "reserve percentage")
	assert.Contains(t, msg, "max per operation percentage")
	assert.Contains(t, msg, "prohibited fund -1")
	assert.Contains(t, msg, `prohibited nature "12345"`)
	assert.NotContains(t, msg, "339018")
}

func TestParseProhibitedFund(t *testing.T) {
	tests := []struct {
		in      string
		want    core.FundCode
		wantErr bool
	}{
		{"761", 761, false},
		{" 100 ", 100, false},
		{"none", core.NoFund, false},
		{"NONE", core.NoFund, false},
		{"", core.NoFund, false},
		{"0", core.NoFund, false},
		{"-3", core.NoFund, true},
		{"abc", core.NoFund, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProhibitedFund(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
